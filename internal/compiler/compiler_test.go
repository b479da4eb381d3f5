package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/visionflow/internal/graph"
	"firestige.xyz/visionflow/pkg/component"
)

var (
	intType   = component.NewTypeTag("int")
	frameType = component.NewTypeTag("frame")
)

// descriptorComponent is a compile-only fixture: Compile never calls Run,
// so tests only need a fixed Descriptor.
type descriptorComponent struct {
	d component.Descriptor
}

func (c descriptorComponent) Descriptor() component.Descriptor { return c.d }
func (c descriptorComponent) Run(component.Context) error      { return nil }

func factory(d component.Descriptor) component.Factory {
	return func() component.Component { return descriptorComponent{d: d} }
}

func primaryOut(kind component.ChannelKind, t component.TypeTag) map[string]component.OutputSpec {
	return map[string]component.OutputSpec{"": {Kind: kind, ValueType: t}}
}

func buildGraph(t *testing.T, desc graph.Description, factories map[string]component.Factory) *graph.Graph {
	t.Helper()
	g, err := graph.Build(desc, func(typ string) (component.Factory, error) {
		f, ok := factories[typ]
		if !ok {
			return nil, errors.New("no such type")
		}
		return f, nil
	})
	require.NoError(t, err)
	return g
}

func TestCompile_IdentityPipeline(t *testing.T) {
	// camera -> clone -> debug
	factories := map[string]component.Factory{
		"camera": factory(component.Descriptor{Outputs: primaryOut(component.Single, frameType)}),
		"clone": factory(component.Descriptor{
			Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: frameType}},
			Outputs: primaryOut(component.Single, frameType),
		}),
		"debug": factory(component.Descriptor{
			Inputs: []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: frameType}},
		}),
	}
	desc := graph.Description{
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"clone":  {Type: "clone", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"debug":  {Type: "debug", Inputs: map[string]string{component.PrimaryInput: "clone"}},
		},
		Entries: []string{"camera"},
	}
	g := buildGraph(t, desc, factories)

	plan, err := Compile(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"camera", "clone", "debug"}, plan.Order)

	cloneCP, ok := plan.Component("clone")
	require.True(t, ok)
	assert.Empty(t, cloneCP.BroadcastPath, "single-channel identity pipeline never crosses a broadcast scope")

	cameraCP, _ := plan.Component("camera")
	assert.Equal(t, []RouteTarget{{Consumer: "clone", Input: component.PrimaryInput}}, cameraCP.Routes[""])
}

func TestCompile_BroadcastAndCollect(t *testing.T) {
	// camera -> split (multiple) -> square -> collect-vec(elem=square, ref=split.$finish)
	factories := map[string]component.Factory{
		"camera": factory(component.Descriptor{Outputs: primaryOut(component.Single, frameType)}),
		"split": factory(component.Descriptor{
			Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: frameType}},
			Outputs: primaryOut(component.Multiple, intType),
		}),
		"square": factory(component.Descriptor{
			Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: intType}},
			Outputs: primaryOut(component.Single, intType),
		}),
		"collect-vec": factory(component.Descriptor{
			Inputs: []component.InputSpec{
				{Name: "elem", Required: true, ValueType: intType},
				{Name: "ref", Required: false},
			},
			Aggregating: true,
		}),
	}
	desc := graph.Description{
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"split":  {Type: "split", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"square": {Type: "square", Inputs: map[string]string{component.PrimaryInput: "split"}},
			"collect-vec": {Type: "collect-vec", Inputs: map[string]string{
				"elem": "square",
				"ref":  "split.$finish",
			}},
		},
		Entries: []string{"camera"},
	}
	g := buildGraph(t, desc, factories)

	plan, err := Compile(g)
	require.NoError(t, err)

	squareCP, _ := plan.Component("square")
	require.Len(t, squareCP.BroadcastPath, 1)
	assert.Equal(t, ScopeID{Component: "split", Channel: ""}, squareCP.BroadcastPath[0])

	collectCP, _ := plan.Component("collect-vec")
	require.NotNil(t, collectCP.CollapsesScope)
	assert.Equal(t, ScopeID{Component: "split", Channel: ""}, *collectCP.CollapsesScope)
	assert.Empty(t, collectCP.BroadcastPath, "collect-vec runs outside the scope it collapses")
}

func TestCompile_AmbiguousBroadcastRejected(t *testing.T) {
	// camera -> A (multiple) -> X; camera -> B (multiple) -> X
	factories := map[string]component.Factory{
		"camera": factory(component.Descriptor{Outputs: primaryOut(component.Single, frameType)}),
		"fanout": factory(component.Descriptor{
			Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: frameType}},
			Outputs: primaryOut(component.Multiple, intType),
		}),
		"x": factory(component.Descriptor{
			Inputs: []component.InputSpec{
				{Name: "a", Required: true, ValueType: intType},
				{Name: "b", Required: true, ValueType: intType},
			},
		}),
	}
	desc := graph.Description{
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"A":      {Type: "fanout", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"B":      {Type: "fanout", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"x": {Type: "x", Inputs: map[string]string{
				"a": "A",
				"b": "B",
			}},
		},
		Entries: []string{"camera"},
	}
	g := buildGraph(t, desc, factories)

	_, err := Compile(g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousBroadcast))
	assert.Contains(t, err.Error(), "x")
}

func TestCompile_OptionalInputAbsent(t *testing.T) {
	// camera -> fps (min, max, avg); nt(min=fps.min) with required max unwired.
	factories := map[string]component.Factory{
		"camera": factory(component.Descriptor{Outputs: primaryOut(component.Single, frameType)}),
		"fps": factory(component.Descriptor{
			Inputs: []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: frameType}},
			Outputs: map[string]component.OutputSpec{
				"min": {Kind: component.Single, ValueType: intType},
				"max": {Kind: component.Single, ValueType: intType},
				"avg": {Kind: component.Single, ValueType: intType},
			},
		}),
		"nt": factory(component.Descriptor{
			Inputs: []component.InputSpec{
				{Name: "min", Required: true, ValueType: intType},
				{Name: "max", Required: true, ValueType: intType},
			},
		}),
	}
	desc := graph.Description{
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"fps":    {Type: "fps", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"nt":     {Type: "nt", Inputs: map[string]string{"min": "fps.min"}},
		},
		Entries: []string{"camera"},
	}
	g := buildGraph(t, desc, factories)

	_, err := Compile(g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInput))
	assert.Contains(t, err.Error(), "max")

	// Making max optional: the graph compiles and nt simply never sees it.
	factories["nt"] = factory(component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "min", Required: true, ValueType: intType},
			{Name: "max", Required: false, ValueType: intType},
		},
	})
	g = buildGraph(t, desc, factories)

	plan, err := Compile(g)
	require.NoError(t, err)
	ntCP, ok := plan.Component("nt")
	require.True(t, ok)
	assert.Contains(t, ntCP.OptionalInputs, "max")
	_, wired := ntCP.InputWires["max"]
	assert.False(t, wired)
}
