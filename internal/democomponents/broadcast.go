package democomponents

import "firestige.xyz/visionflow/pkg/component"

// Split emits three ints (1, 2, 3) on its multiple primary output, one
// broadcast branch per value — spec.md §8 scenario 2's fan-out source.
type Split struct{}

func (Split) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: FrameTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Multiple, ValueType: IntTag}},
	}
}

func (Split) Run(ctx component.Context) error {
	for _, n := range []int{1, 2, 3} {
		if err := ctx.Emit(component.PrimaryInput, component.NewValue(IntTag, n)); err != nil {
			return err
		}
	}
	return nil
}

// Square squares its primary int input.
type Square struct{}

func (Square) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: IntTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: IntTag}},
	}
}

func (Square) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	n := v.Payload().(int)
	return ctx.Emit(component.PrimaryInput, component.NewValue(IntTag, n*n))
}

// CollectVec aggregates every value delivered on elem before the scope
// ref belongs to fully drains, emitting the collected slice on its
// primary output and again, explicitly sorted by broadcast index, on
// "sorted" — spec.md §4.2's "aggregators that require a deterministic
// order publish a secondary channel labeled sorted". The runtime already
// returns GetNamedAll in broadcast-index order, so sorted here is a
// literal alias rather than a second reconstruction.
type CollectVec struct{}

func (CollectVec) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "elem", Required: true, ValueType: IntTag},
			{Name: "ref", Required: true, ValueType: IntTag},
		},
		Outputs: map[string]component.OutputSpec{
			component.PrimaryInput: {Kind: component.Single, ValueType: IntVecTag},
			"sorted":               {Kind: component.Single, ValueType: IntVecTag},
		},
		Aggregating: true,
	}
}

func (CollectVec) Run(ctx component.Context) error {
	elems := ctx.GetNamedAll("elem")
	vec := make([]int, len(elems))
	for i, v := range elems {
		vec[i] = v.Payload().(int)
	}
	if err := ctx.Emit(component.PrimaryInput, component.NewValue(IntVecTag, vec)); err != nil {
		return err
	}
	return ctx.Emit("sorted", component.NewValue(IntVecTag, vec))
}
