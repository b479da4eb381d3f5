package runtime

import (
	"sort"
	"sync"
	"sync/atomic"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/pkg/component"
)

type invocationStatus int32

const (
	statusPending invocationStatus = iota
	statusReady
	statusRunning
	statusEmitted
	statusFailed
	// statusSkipped marks an invocation that never ran because a required
	// input's producer finished (successfully or not) without ever
	// delivering a value to it — spec.md §4.2's "the consumer is skipped
	// with a logged warning" path.
	statusSkipped
)

type collectedValue struct {
	stack BroadcastStack
	value component.Value
}

// invocationState is one live invocation of a component at a given broadcast
// prefix: the accumulator for its inputs before it is dispatched, and the
// buffer for its outputs after it runs. One exists per (component, prefix)
// pair for the lifetime of the owning Run.
type invocationState struct {
	run    *Run
	plan   *compiler.ComponentPlan
	prefix BroadcastStack // == this invocation's own broadcast stack

	mu       sync.Mutex
	primary  component.Value
	hasPrime bool
	named    map[string]component.Value
	namedAll map[string][]collectedValue
	filled   map[string]bool
	missing  int // count of required inputs not yet filled
	closed   map[string]bool
	skipped  bool

	emitted map[string][]component.Value

	enqueued atomic.Bool
	status   atomic.Int32
}

func (st *invocationState) setStatus(s invocationStatus) { st.status.Store(int32(s)) }

func (st *invocationState) currentStatus() invocationStatus {
	return invocationStatus(st.status.Load())
}

func newInvocationState(run *Run, plan *compiler.ComponentPlan, prefix BroadcastStack) *invocationState {
	return &invocationState{
		run:     run,
		plan:    plan,
		prefix:  prefix,
		named:   make(map[string]component.Value),
		filled:  make(map[string]bool),
		missing: len(plan.RequiredInputs),
		emitted: make(map[string][]component.Value),
	}
}

// deliverInput stores one delivered value. stack is the value's own
// broadcast stack, which may run deeper than this invocation's prefix when
// the input is an aggregating component's elem (or another collapsing
// input): every such delivery is appended to that input's collected list
// instead of overwriting a single slot.
func (st *invocationState) deliverInput(input string, value component.Value, stack BroadcastStack) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.plan.Descriptor.Aggregating {
		if st.namedAll == nil {
			st.namedAll = make(map[string][]collectedValue)
		}
		st.namedAll[input] = append(st.namedAll[input], collectedValue{stack: stack, value: value})
		if !st.filled[input] {
			st.filled[input] = true
			if st.isRequired(input) {
				st.missing--
			}
		}
		return
	}

	if input == component.PrimaryInput {
		st.primary = value
		st.hasPrime = true
	} else {
		st.named[input] = value
	}
	if !st.filled[input] {
		st.filled[input] = true
		if st.isRequired(input) {
			st.missing--
		}
	}
}

func (st *invocationState) isRequired(input string) bool {
	for _, r := range st.plan.RequiredInputs {
		if r == input {
			return true
		}
	}
	return false
}

// tryMarkReady reports whether every required input is now present, for a
// non-aggregating invocation, and claims the single transition into the
// ready/enqueued state if so.
func (st *invocationState) tryMarkReady() bool {
	st.mu.Lock()
	ready := st.missing <= 0 && !st.skipped
	st.mu.Unlock()
	if !ready {
		return false
	}
	return st.enqueued.CompareAndSwap(false, true)
}

// closeInput records that input will never receive a value — its producer
// has finished (successfully or not) without ever emitting on the wire
// feeding it. It reports whether this closed a required input that had not
// yet arrived, which permanently skips the invocation: the caller must
// release it (finishInvocation) since it will never become ready on its own.
// Aggregating invocations are never skipped this way — their readiness is
// driven entirely by the collapsed scope draining to zero, which already
// happens regardless of producer success (finishInvocation leaves the scope
// unconditionally), so a producer that emits nothing simply contributes zero
// collected values rather than blocking anything.
func (st *invocationState) closeInput(input string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.plan.Descriptor.Aggregating || st.skipped || st.filled[input] {
		return false
	}
	if st.closed == nil {
		st.closed = make(map[string]bool)
	}
	if st.closed[input] {
		return false
	}
	st.closed[input] = true
	if !st.isRequired(input) {
		return false
	}
	st.skipped = true
	return true
}

// markReadyForAggregation is the aggregating counterpart, invoked once the
// collapsed scope has fully drained (see scopeTable.onDrain). It does not
// check required inputs: an aggregator with zero elem deliveries still
// fires, matching the empty-collection edge case.
func (st *invocationState) markReadyForAggregation() bool {
	return st.enqueued.CompareAndSwap(false, true)
}

func (st *invocationState) getPrimary() (component.Value, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.primary, st.hasPrime
}

func (st *invocationState) getNamed(name string) (component.Value, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.named[name]
	return v, ok
}

// getNamedAll returns every value collected for name, ordered by broadcast
// index (depth-first-single-thread order), so aggregators need not see
// broadcast stacks themselves to reconstruct a deterministic order — the
// runtime performs the sort GetNamedAll already promises.
func (st *invocationState) getNamedAll(name string) []component.Value {
	st.mu.Lock()
	defer st.mu.Unlock()
	items := append([]collectedValue(nil), st.namedAll[name]...)
	sort.Slice(items, func(i, j int) bool {
		return lessStack(items[i].stack, items[j].stack)
	})
	out := make([]component.Value, len(items))
	for i, it := range items {
		out[i] = it.value
	}
	return out
}

func lessStack(a, b BroadcastStack) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// emit records one value on channel, validating single-emit-once and
// declared-channel rules. A value's position within the channel's slice
// becomes its broadcast index if channel is a Multiple output.
func (st *invocationState) emit(channel string, value component.Value) error {
	if channel == component.FinishChannel {
		return ErrEmitOnUnknownChannel
	}
	spec, ok := st.plan.Descriptor.Outputs[channel]
	if !ok {
		return ErrEmitOnUnknownChannel
	}
	if value.Tag() != spec.ValueType {
		return ErrInputTypeMismatchAtRuntime
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if spec.Kind == component.Single && len(st.emitted[channel]) >= 1 {
		return ErrEmitOnSingleTwice
	}
	st.emitted[channel] = append(st.emitted[channel], value)
	return nil
}

func (st *invocationState) snapshotEmitted() map[string][]component.Value {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string][]component.Value, len(st.emitted))
	for ch, vs := range st.emitted {
		out[ch] = append([]component.Value(nil), vs...)
	}
	return out
}
