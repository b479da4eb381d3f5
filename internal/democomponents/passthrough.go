package democomponents

import "firestige.xyz/visionflow/pkg/component"

// Clone forwards its primary input to its primary output unchanged — a
// value is immutable-by-default, so "cloning" it is just re-publishing
// the same handle (pkg/component.Value.Clone never deep-copies).
type Clone struct{}

func (Clone) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: FrameTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: FrameTag}},
	}
}

func (Clone) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	return ctx.Emit(component.PrimaryInput, v.Clone())
}

// Debug is a terminal sink that logs whatever it receives and emits
// nothing — the identity pipeline's "debug surface" stand-in.
type Debug struct{}

func (Debug) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: FrameTag}},
	}
}

func (Debug) Run(ctx component.Context) error {
	v, ok := ctx.GetPrimary()
	if !ok {
		return nil
	}
	ctx.LogSpan().WithField("tag", v.Tag().String()).Debug("debug sink received value")
	return nil
}
