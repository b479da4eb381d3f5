// Package runtime executes a compiled compiler.Plan: it owns the worker pool,
// the admission gate, and the per-Run broadcast/aggregation bookkeeping.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/internal/graph"
	"firestige.xyz/visionflow/internal/metrics"
	"firestige.xyz/visionflow/pkg/component"
)

// Params are the run parameters (spec.md §6's max_running/num_threads).
// MaxRunning is held atomically and can be hot-reloaded with
// UpdateMaxRunning, mirroring the teacher's atomic config values
// (UpdateMetricsInterval); NumWorkers is fixed when the Dispatcher is built.
type Params struct {
	MaxRunning int64
	NumWorkers int
}

// Dispatcher runs one compiled Plan: a fixed worker pool drains a queue of
// ready invocations, with no suspension point inside a single invocation's
// execution (spec.md §5) — the teacher's single-threaded-per-pipeline
// processLoop, generalized to pull from a shared ready queue instead of one
// pipeline's own channel.
type Dispatcher struct {
	g    *graph.Graph
	plan *compiler.Plan

	instances map[string]component.Component

	maxRunning atomic.Int64
	running    atomic.Int64
	numWorkers int

	ready chan *invocationState

	mu   sync.Mutex
	runs map[string]*Run

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
}

// NewDispatcher constructs one component instance per graph component name
// (shared across every invocation and every run; components must tolerate
// concurrent invocations of themselves, per spec.md §5) and starts no
// goroutines until Start is called.
func NewDispatcher(g *graph.Graph, plan *compiler.Plan, params Params) (*Dispatcher, error) {
	if params.NumWorkers <= 0 {
		params.NumWorkers = 1
	}
	instances := make(map[string]component.Component, len(g.Instances))
	for name, inst := range g.Instances {
		instances[name] = inst.Factory()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		g:         g,
		plan:      plan,
		instances: instances,
		ready:     make(chan *invocationState, 256),
		runs:      make(map[string]*Run),
		ctx:       ctx,
		cancel:    cancel,
	}
	d.maxRunning.Store(params.MaxRunning)
	d.numWorkers = params.NumWorkers
	return d, nil
}

// Start spawns the fixed worker pool. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.numWorkers; i++ {
			d.wg.Add(1)
			go d.workerLoop()
		}
	})
}

// Stop cancels every in-flight run and waits for workers to drain.
func (d *Dispatcher) Stop() {
	d.cancel()
	close(d.ready)
	d.wg.Wait()
}

// Plan returns the compiled plan this dispatcher executes.
func (d *Dispatcher) Plan() *compiler.Plan { return d.plan }

// Graph returns the graph this dispatcher's plan was compiled from.
func (d *Dispatcher) Graph() *graph.Graph { return d.g }

// UpdateMaxRunning hot-reloads the admission gate's ceiling.
func (d *Dispatcher) UpdateMaxRunning(n int64) {
	d.maxRunning.Store(n)
	slog.Info("max_running updated", "max_running", n)
}

// BeginRun admits one new Run seeded from a set of entry values (spec.md
// §3's begin_run). It returns ErrRunDropped if the admission gate is full.
func (d *Dispatcher) BeginRun(sourceName string, entryValues map[string]component.Value) (*Run, error) {
	for {
		cur := d.running.Load()
		if cur >= d.maxRunning.Load() {
			metrics.RunsDroppedTotal.WithLabelValues(sourceName).Inc()
			return nil, ErrRunDropped
		}
		if d.running.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	run := newRun(d.ctx, sourceName)
	d.mu.Lock()
	d.runs[run.id] = run
	d.mu.Unlock()

	metrics.RunsStartedTotal.WithLabelValues(sourceName).Inc()
	metrics.RunsActive.Inc()
	slog.Info("run started", "run_id", run.id, "source", sourceName)

	for name, v := range entryValues {
		if !d.g.IsEntry(name) {
			continue
		}
		if _, ok := d.plan.Component(name); !ok {
			continue
		}
		d.completeProducer(run, name, BroadcastStack{}, map[string][]component.Value{
			component.PrimaryInput: {v},
		})
	}

	d.maybeRetire(run)
	return run, nil
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()
	for st := range d.ready {
		d.execute(st)
	}
}

// enqueue hands a ready invocation to the worker pool. It is a no-op if the
// owning run was already cancelled.
func (d *Dispatcher) enqueue(st *invocationState) {
	if st.run.isCancelled() {
		return
	}
	st.setStatus(statusReady)
	select {
	case d.ready <- st:
	case <-d.ctx.Done():
	}
}

func (d *Dispatcher) execute(st *invocationState) {
	run := st.run
	if run.isCancelled() {
		d.finishInvocation(run, st)
		return
	}

	comp, ok := d.instances[st.plan.Name]
	if !ok {
		d.finishInvocation(run, st)
		return
	}

	st.setStatus(statusRunning)
	ctx := &invocationContext{run: run, st: st}
	metrics.InvocationsTotal.WithLabelValues(st.plan.Name, "started").Inc()
	start := time.Now()
	err := comp.Run(ctx)
	metrics.InvocationLatencySeconds.WithLabelValues(st.plan.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		st.setStatus(statusFailed)
		metrics.InvocationsTotal.WithLabelValues(st.plan.Name, "failed").Inc()
		slog.Error("component invocation failed",
			"run_id", run.id, "component", st.plan.Name, "error", fmt.Errorf("%w: %v", ErrComponentFailed, err))
	} else {
		st.setStatus(statusEmitted)
		metrics.InvocationsTotal.WithLabelValues(st.plan.Name, "succeeded").Inc()
	}
	// A run cancelled while this invocation was running publishes nothing
	// further: the invocation only releases its bookkeeping.
	if run.isCancelled() {
		d.finishInvocation(run, st)
		return
	}
	// completeProducer (and therefore $finish) runs regardless of err:
	// spec.md §3/§4.3 emit $finish on every invocation, and any wire this
	// invocation failed to deliver on still needs its "no value coming"
	// signal propagated so a sibling consumer never hangs on it forever.
	d.completeProducer(run, st.plan.Name, st.prefix, st.snapshotEmitted())
	d.finishInvocation(run, st)
}

// finishInvocation leaves this invocation's enclosing scope (if any),
// decrements the run's in-flight counter, and checks for retirement.
func (d *Dispatcher) finishInvocation(run *Run, st *invocationState) {
	if st.plan.Depth() > 0 {
		scope := st.plan.BroadcastPath[st.plan.Depth()-1]
		outer := st.prefix.Truncate(st.plan.Depth() - 1)
		if err := run.scopes.leave(scope, outer.Key()); err != nil {
			metrics.ScopeUnderflowsTotal.Inc()
			slog.Error("scope underflow", "run_id", run.id, "component", st.plan.Name, "error", err)
			run.Cancel()
		}
	}
	run.inFlight.Add(-1)
	d.maybeRetire(run)
}

func (d *Dispatcher) maybeRetire(run *Run) {
	if run.inFlight.Load() != 0 || run.scopes.size() != 0 {
		return
	}
	d.mu.Lock()
	_, ok := d.runs[run.id]
	if ok {
		delete(d.runs, run.id)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	run.retire()
	d.running.Add(-1)
	metrics.RunsActive.Dec()
	metrics.RunsRetiredTotal.WithLabelValues(run.sourceName).Inc()
	slog.Info("run retired", "run_id", run.id, "source", run.sourceName)
}

// completeProducer publishes every value an invocation (or entry seed)
// produced: each declared channel in emitted, then the implicit $finish.
// Multiple-channel scope entries are registered synchronously here, before
// any child invocation is created, so a scope's full membership is known
// before any child can possibly complete and race onDrain's zero check.
// Any declared Single channel with nothing in emitted — because the
// component errored before emitting, or simply chose not to emit on it — is
// closed instead: consumers with a required input on that wire are told it
// will never arrive, so they can be skipped rather than left waiting
// forever (spec.md §4.2).
func (d *Dispatcher) completeProducer(run *Run, name string, ownStack BroadcastStack, emitted map[string][]component.Value) {
	cp, ok := d.plan.Component(name)
	if !ok {
		return
	}
	for channel, values := range emitted {
		d.publishChannel(run, cp, channel, ownStack, values)
	}
	for channel, spec := range cp.Descriptor.Outputs {
		if spec.Kind != component.Single || len(emitted[channel]) > 0 {
			continue
		}
		d.closeChannel(run, cp, channel, ownStack)
	}
	d.publishChannel(run, cp, component.FinishChannel, ownStack, []component.Value{{}})
}

// closeChannel tells every consumer wired to one of cp's output channels
// that produced no value this invocation that the wire will deliver
// nothing at ownStack's prefix.
func (d *Dispatcher) closeChannel(run *Run, cp *compiler.ComponentPlan, channel string, ownStack BroadcastStack) {
	for _, t := range cp.Routes[channel] {
		d.closeConsumerInput(run, t.Consumer, t.Input, ownStack)
	}
}

// closeConsumerInput is deliver's counterpart for "no value, ever": it
// walks the same shallow-replication and invocation-creation paths so a
// close signal reaches an invocation regardless of whether it already
// exists or is created by this very call.
func (d *Dispatcher) closeConsumerInput(run *Run, consumerName, input string, stack BroadcastStack) {
	cp, ok := d.plan.Component(consumerName)
	if !ok {
		return
	}
	depth := cp.Depth()

	if len(stack) < depth {
		run.cacheClosedShallow(consumerName, input, stack)
		for _, st := range run.matchingInvocations(consumerName, stack.Key()) {
			d.markInputClosed(run, st, input)
		}
		return
	}

	prefix := stack.Truncate(depth)
	st, created := run.invocationFor(cp, prefix)
	if created {
		run.inFlight.Add(1)
		metrics.InvocationsCreatedTotal.WithLabelValues(consumerName).Inc()
		for _, absorbed := range run.absorbedShallow(consumerName, prefix.Key()) {
			st.deliverInput(absorbed.input, absorbed.value.value, absorbed.value.stack)
		}
		for _, closedInput := range run.absorbedClosedInputs(consumerName, prefix.Key()) {
			d.markInputClosed(run, st, closedInput)
		}
		if cp.Descriptor.Aggregating && cp.CollapsesScope != nil {
			scope := *cp.CollapsesScope
			run.scopes.onDrain(scope, prefix.Key(), func() {
				if st.markReadyForAggregation() {
					d.enqueue(st)
				}
			})
		}
	}
	d.markInputClosed(run, st, input)
}

// markInputClosed applies one permanently-missing-input signal to an
// invocation, skipping and releasing it if that was its last chance at a
// required input.
func (d *Dispatcher) markInputClosed(run *Run, st *invocationState, input string) {
	if !st.closeInput(input) {
		return
	}
	st.setStatus(statusSkipped)
	metrics.InvocationsTotal.WithLabelValues(st.plan.Name, "skipped").Inc()
	slog.Warn("invocation skipped: required input will never arrive",
		"run_id", run.id, "component", st.plan.Name, "input", input)
	d.finishInvocation(run, st)
}

func (d *Dispatcher) publishChannel(run *Run, cp *compiler.ComponentPlan, channel string, ownStack BroadcastStack, values []component.Value) {
	targets := cp.Routes[channel]
	if len(targets) == 0 {
		return
	}

	spec, declared := cp.Descriptor.Outputs[channel]
	isMultiple := declared && spec.Kind == component.Multiple

	if isMultiple {
		scope := compiler.ScopeID{Component: cp.Name, Channel: channel}
		distinctConsumers := make(map[string]bool, len(targets))
		for _, t := range targets {
			distinctConsumers[t.Consumer] = true
		}
		for range values {
			for i := 0; i < len(distinctConsumers); i++ {
				run.scopes.enter(scope, ownStack.Key())
			}
		}
	}

	for idx, v := range values {
		childStack := ownStack
		if isMultiple {
			childStack = ownStack.Push(idx)
		}
		for _, t := range targets {
			d.deliver(run, t.Consumer, t.Input, v, childStack)
		}
	}
}

// deliver routes one value to a single (consumer, input) destination,
// handling the shallow-broadcast-replication case where the value's own
// stack is shorter than the consumer's broadcast depth.
func (d *Dispatcher) deliver(run *Run, consumerName, input string, value component.Value, stack BroadcastStack) {
	cp, ok := d.plan.Component(consumerName)
	if !ok {
		return
	}
	depth := cp.Depth()

	if len(stack) < depth {
		run.cacheShallow(consumerName, input, stack, value)
		for _, st := range run.matchingInvocations(consumerName, stack.Key()) {
			d.deliverToInvocation(cp, st, input, value, stack)
		}
		return
	}

	prefix := stack.Truncate(depth)
	st, created := run.invocationFor(cp, prefix)
	if created {
		run.inFlight.Add(1)
		metrics.InvocationsCreatedTotal.WithLabelValues(consumerName).Inc()
		for _, absorbed := range run.absorbedShallow(consumerName, prefix.Key()) {
			st.deliverInput(absorbed.input, absorbed.value.value, absorbed.value.stack)
		}
		if cp.Descriptor.Aggregating && cp.CollapsesScope != nil {
			scope := *cp.CollapsesScope
			run.scopes.onDrain(scope, prefix.Key(), func() {
				if st.markReadyForAggregation() {
					d.enqueue(st)
				}
			})
		}
	}
	d.deliverToInvocation(cp, st, input, value, stack)
}

func (d *Dispatcher) deliverToInvocation(cp *compiler.ComponentPlan, st *invocationState, input string, value component.Value, stack BroadcastStack) {
	st.deliverInput(input, value, stack)
	if !cp.Descriptor.Aggregating {
		if st.tryMarkReady() {
			d.enqueue(st)
		}
	}
}
