package runtime

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/pkg/component"
)

// Run is a single end-to-end pipeline execution seeded by one source value
// (spec.md §3's Run). Components never hold a direct handle to one — they
// carry only its id, the way the teacher's design notes resolve "cyclic
// ownership of run state" with an arena keyed by id (spec.md §9); the arena
// here is Dispatcher.runs.
type Run struct {
	id         string
	sourceName string

	ctx    context.Context
	cancel context.CancelFunc

	inFlight  atomic.Int64
	cancelled atomic.Bool

	scopes *scopeTable

	mu          sync.Mutex
	invocations map[string]map[string]*invocationState // component -> prefix key -> state

	// pendingShallow caches a value delivered to a consumer whose broadcast
	// depth exceeds the value's own stack length, so it can be replayed
	// into every deeper invocation that is compatible with it — a value
	// that never crossed a broadcast edge is implicitly shared by every
	// branch of a deeper sibling input (spec.md §4.3's compatibility rule,
	// read as a delivery obligation rather than just a validity check).
	pendingShallow map[string]map[string]map[string]shallowValue

	// closedShallow is pendingShallow's counterpart for "this wire will
	// never deliver a value at this prefix or deeper": recorded the same
	// way so a close discovered before a deeper invocation exists is still
	// applied to it once it is created.
	closedShallow map[string]map[string]map[string]bool

	retired chan struct{}
	once    sync.Once
}

type shallowValue struct {
	stack BroadcastStack
	value component.Value
}

func newRun(parent context.Context, sourceName string) *Run {
	ctx, cancel := context.WithCancel(parent)
	return &Run{
		id:             uuid.NewString(),
		sourceName:     sourceName,
		ctx:            ctx,
		cancel:         cancel,
		scopes:         newScopeTable(),
		invocations:    make(map[string]map[string]*invocationState),
		pendingShallow: make(map[string]map[string]map[string]shallowValue),
		closedShallow:  make(map[string]map[string]map[string]bool),
		retired:        make(chan struct{}),
	}
}

// ID returns the run's hex-dashed 128-bit identifier.
func (r *Run) ID() string { return r.id }

// SourceName returns the entry source's human-readable name.
func (r *Run) SourceName() string { return r.sourceName }

// PipelineID is the 32-hex-char form of ID with no separators (spec.md §6's
// "%i" interpolation).
func (r *Run) PipelineID() string { return strings.ReplaceAll(r.id, "-", "") }

// Cancel marks the run cancelled. Workers abandon new invocations for it on
// dequeue; invocations already running finish normally (they have no
// suspension point) and their outputs are simply never published.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

func (r *Run) isCancelled() bool { return r.cancelled.Load() }

// Done returns a channel closed once the run has fully retired.
func (r *Run) Done() <-chan struct{} { return r.retired }

func (r *Run) retire() {
	r.once.Do(func() {
		r.cancel()
		close(r.retired)
	})
}

// invocationFor returns the invocation state keyed by (component, prefix),
// creating it on first touch. The second return value reports whether this
// call created it.
func (r *Run) invocationFor(cp *compiler.ComponentPlan, prefix BroadcastStack) (*invocationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPrefix, ok := r.invocations[cp.Name]
	if !ok {
		byPrefix = make(map[string]*invocationState)
		r.invocations[cp.Name] = byPrefix
	}
	key := prefix.Key()
	st, ok := byPrefix[key]
	if ok {
		return st, false
	}
	st = newInvocationState(r, cp, prefix)
	byPrefix[key] = st
	return st, true
}

func (r *Run) cacheShallow(componentName, input string, stack BroadcastStack, value component.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byInput, ok := r.pendingShallow[componentName]
	if !ok {
		byInput = make(map[string]map[string]shallowValue)
		r.pendingShallow[componentName] = byInput
	}
	byKey, ok := byInput[input]
	if !ok {
		byKey = make(map[string]shallowValue)
		byInput[input] = byKey
	}
	byKey[stack.Key()] = shallowValue{stack: stack, value: value}
}

// matchingInvocations returns every already-created invocation of the named
// component whose prefix extends shallowKey, for replaying a shallow value
// into them.
func (r *Run) matchingInvocations(componentName string, shallowKey string) []*invocationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	byPrefix := r.invocations[componentName]
	var out []*invocationState
	for key, st := range byPrefix {
		if hasPrefixKey(key, shallowKey) {
			out = append(out, st)
		}
	}
	return out
}

// absorbedShallow returns every cached shallow value (input, value) whose
// key is a prefix of the newly-created invocation's own prefix key.
func (r *Run) absorbedShallow(componentName string, prefixKey string) []struct {
	input string
	value shallowValue
} {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []struct {
		input string
		value shallowValue
	}
	for input, byKey := range r.pendingShallow[componentName] {
		for shallowKey, v := range byKey {
			if hasPrefixKey(prefixKey, shallowKey) {
				out = append(out, struct {
					input string
					value shallowValue
				}{input: input, value: v})
			}
		}
	}
	return out
}

// cacheClosedShallow records that input will never receive a value at any
// prefix extending stack, mirroring cacheShallow for "no value" instead of
// a value.
func (r *Run) cacheClosedShallow(componentName, input string, stack BroadcastStack) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byInput, ok := r.closedShallow[componentName]
	if !ok {
		byInput = make(map[string]map[string]bool)
		r.closedShallow[componentName] = byInput
	}
	byKey, ok := byInput[input]
	if !ok {
		byKey = make(map[string]bool)
		byInput[input] = byKey
	}
	byKey[stack.Key()] = true
}

// absorbedClosedInputs returns every input name whose cached shallow-close
// key is a prefix of the newly-created invocation's own prefix key.
func (r *Run) absorbedClosedInputs(componentName, prefixKey string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for input, byKey := range r.closedShallow[componentName] {
		for shallowKey := range byKey {
			if hasPrefixKey(prefixKey, shallowKey) {
				out = append(out, input)
				break
			}
		}
	}
	return out
}
