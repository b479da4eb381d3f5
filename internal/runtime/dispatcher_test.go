package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/internal/graph"
	"firestige.xyz/visionflow/pkg/component"
)

var intTag = component.NewTypeTag("int")

// cloneComponent forwards its primary input to its primary output
// unchanged, and doubles as a camera stand-in for entry seeding (entries
// never actually run, only their Descriptor().Outputs is consulted).
type cloneComponent struct{}

func (cloneComponent) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: intTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: intTag}},
	}
}

func (cloneComponent) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	return ctx.Emit(component.PrimaryInput, v)
}

// sinkComponent records the last value it received on its primary input.
type sinkComponent struct {
	mu      sync.Mutex
	primary int
}

func (s *sinkComponent) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: intTag}},
	}
}

func (s *sinkComponent) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	s.mu.Lock()
	s.primary = v.Payload().(int)
	s.mu.Unlock()
	return nil
}

// splitComponent emits three ints on a Multiple output, one broadcast
// branch per value.
type splitComponent struct{}

func (splitComponent) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: intTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Multiple, ValueType: intTag}},
	}
}

func (splitComponent) Run(ctx component.Context) error {
	for _, n := range []int{1, 2, 3} {
		if err := ctx.Emit(component.PrimaryInput, component.NewValue(intTag, n)); err != nil {
			return err
		}
	}
	return nil
}

// squareComponent squares its primary input.
type squareComponent struct{}

func (squareComponent) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: intTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: intTag}},
	}
}

func (squareComponent) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	n := v.Payload().(int)
	return ctx.Emit(component.PrimaryInput, component.NewValue(intTag, n*n))
}

// collectSumComponent aggregates every elem delivered before its ref window
// (split's $finish) drains, emitting their sum — a simplified collect-vec
// whose result is a single int rather than a slice, so the test can assert
// it directly.
type collectSumComponent struct {
	mu     sync.Mutex
	result int
	ran    bool
}

func (c *collectSumComponent) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "elem", Required: true, ValueType: intTag},
			{Name: "ref", Required: true, ValueType: intTag},
		},
		Outputs:     map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: intTag}},
		Aggregating: true,
	}
}

func (c *collectSumComponent) Run(ctx component.Context) error {
	sum := 0
	for _, v := range ctx.GetNamedAll("elem") {
		sum += v.Payload().(int)
	}
	c.mu.Lock()
	c.result = sum
	c.ran = true
	c.mu.Unlock()
	return ctx.Emit(component.PrimaryInput, component.NewValue(intTag, sum))
}

func lookup(factories map[string]component.Factory) func(string) (component.Factory, error) {
	return func(t string) (component.Factory, error) {
		f, ok := factories[t]
		if !ok {
			return nil, component.ErrNotRegistered
		}
		return f, nil
	}
}

func compileGraph(t *testing.T, desc graph.Description, factories map[string]component.Factory) (*graph.Graph, *compiler.Plan) {
	t.Helper()
	g, err := graph.Build(desc, lookup(factories))
	require.NoError(t, err)
	plan, err := compiler.Compile(g)
	require.NoError(t, err)
	return g, plan
}

func TestDispatcher_LinearChainDeliversIdentity(t *testing.T) {
	sink := &sinkComponent{}
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"clone":  {Type: "clone", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"sink":   {Type: "sink", Inputs: map[string]string{component.PrimaryInput: "clone"}},
		},
	}
	factories := map[string]component.Factory{
		"camera": func() component.Component { return cloneComponent{} },
		"clone":  func() component.Component { return cloneComponent{} },
		"sink":   func() component.Component { return sink },
	}
	g, plan := compileGraph(t, desc, factories)

	d, err := NewDispatcher(g, plan, Params{MaxRunning: 4, NumWorkers: 2})
	require.NoError(t, err)
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(intTag, 7),
	})
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not retire")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, 7, sink.primary)
}

func TestDispatcher_BroadcastThenAggregateCollapsesScope(t *testing.T) {
	collect := &collectSumComponent{}
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"split":  {Type: "split", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"square": {Type: "square", Inputs: map[string]string{component.PrimaryInput: "split"}},
			"collect": {
				Type: "collect",
				Inputs: map[string]string{
					"elem": "square",
					"ref":  "split.$finish",
				},
			},
		},
	}
	factories := map[string]component.Factory{
		"camera":  func() component.Component { return cloneComponent{} },
		"split":   func() component.Component { return splitComponent{} },
		"square":  func() component.Component { return squareComponent{} },
		"collect": func() component.Component { return collect },
	}
	g, plan := compileGraph(t, desc, factories)

	d, err := NewDispatcher(g, plan, Params{MaxRunning: 4, NumWorkers: 4})
	require.NoError(t, err)
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(intTag, 0),
	})
	require.NoError(t, err)

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not retire")
	}

	collect.mu.Lock()
	defer collect.mu.Unlock()
	require.True(t, collect.ran)
	require.Equal(t, 1+4+9, collect.result)
}

func TestDispatcher_EmitWrongTagReturnsTypeMismatchError(t *testing.T) {
	st := newInvocationState(nil, &compiler.ComponentPlan{
		Name: "wrong",
		Descriptor: component.Descriptor{
			Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: intTag}},
		},
	}, nil)

	err := st.emit(component.PrimaryInput, component.NewValue(stringTag, "oops"))
	require.ErrorIs(t, err, ErrInputTypeMismatchAtRuntime)
}

func TestDispatcher_AdmissionGateDropsOverCapacity(t *testing.T) {
	sink := &sinkComponent{}
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"sink":   {Type: "sink", Inputs: map[string]string{component.PrimaryInput: "camera"}},
		},
	}
	factories := map[string]component.Factory{
		"camera": func() component.Component { return cloneComponent{} },
		"sink":   func() component.Component { return sink },
	}
	g, plan := compileGraph(t, desc, factories)

	d, err := NewDispatcher(g, plan, Params{MaxRunning: 1, NumWorkers: 1})
	require.NoError(t, err)
	// Do not Start the worker pool: the first run's invocation sits
	// enqueued forever, so it never retires and the gate stays provably
	// full for the second BeginRun.
	_, err = d.BeginRun("camera", map[string]component.Value{"camera": component.NewValue(intTag, 1)})
	require.NoError(t, err)

	_, err = d.BeginRun("camera", map[string]component.Value{"camera": component.NewValue(intTag, 2)})
	require.ErrorIs(t, err, ErrRunDropped)
}
