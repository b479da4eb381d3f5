package democomponents

import "firestige.xyz/visionflow/pkg/component"

// Canvas wraps a freshly allocated draw buffer in a guarded component.Cell
// and publishes it — spec.md §8 scenario 6's "camera → canvas(wrap-mutex)"
// producer. Only one invocation at a time may hold the cell's lock, which
// is what lets Draw mutate the buffer in place downstream while every
// other value in the system stays immutable-by-default.
type Canvas struct{}

func (Canvas) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: FrameTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: CanvasTag}},
	}
}

func (Canvas) Run(ctx component.Context) error {
	buf := make([]byte, 0, 4096)
	cell := component.NewCell(buf)
	return ctx.Emit(component.PrimaryInput, component.NewValue(CanvasTag, cell))
}

// Draw mutates the shared canvas cell with one blob and forwards the same
// cell handle downstream unchanged.
type Draw struct{}

func (Draw) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "canvas", Required: true, ValueType: CanvasTag},
			{Name: "elem", Required: true, ValueType: BlobTag},
		},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: CanvasTag}},
	}
}

func (Draw) Run(ctx component.Context) error {
	canvasVal, _ := ctx.GetNamed("canvas")
	blobVal, _ := ctx.GetNamed("elem")
	cell := canvasVal.Payload().(*component.Cell)

	cell.With(func(inner any) any {
		buf := inner.([]byte)
		return append(buf, blobVal.Payload().([]byte)...)
	})

	return ctx.Emit(component.PrimaryInput, canvasVal)
}

// BlobSource is a dedicated entry fixture for scenario 6: it tags its
// primary output BlobTag, the way camera/Clone tags FrameTag, and declares
// it a multiple channel so each blob opens its own broadcast branch, the
// scope SelectLast collapses. The canvas
// scenario thus has a feed of its own for Draw's "elem" input distinct from the
// frame feed Canvas consumes. Entry components are seeded directly by
// BeginRun and never have Run invoked on them; the body only needs to be a
// reasonable fallback for that contract.
type BlobSource struct{}

func (BlobSource) Descriptor() component.Descriptor {
	return component.Descriptor{
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Multiple, ValueType: BlobTag}},
	}
}

func (BlobSource) Run(ctx component.Context) error {
	v, _ := ctx.GetPrimary()
	return ctx.Emit(component.PrimaryInput, v)
}

// SelectLast is the spec.md §8 scenario 6 aggregator: it collapses
// draw's scope via ref=draw.$finish and releases the canvas exactly once,
// downstream of however many draws happened inside that scope.
type SelectLast struct{}

func (SelectLast) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "elem", Required: true, ValueType: CanvasTag},
			{Name: "ref", Required: true, ValueType: CanvasTag},
		},
		Outputs:     map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: CanvasTag}},
		Aggregating: true,
	}
}

func (SelectLast) Run(ctx component.Context) error {
	elems := ctx.GetNamedAll("elem")
	if len(elems) == 0 {
		return nil
	}
	return ctx.Emit(component.PrimaryInput, elems[len(elems)-1])
}

// Unpack takes the lock one last time to copy the buffer out of its cell
// and publishes a plain, no-longer-shared byte slice.
type Unpack struct{}

func (Unpack) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs:  []component.InputSpec{{Name: "inner", Required: true, ValueType: CanvasTag}},
		Outputs: map[string]component.OutputSpec{component.PrimaryInput: {Kind: component.Single, ValueType: BufferTag}},
	}
}

func (Unpack) Run(ctx component.Context) error {
	v, _ := ctx.GetNamed("inner")
	cell := v.Payload().(*component.Cell)

	cell.Lock()
	buf := append([]byte(nil), cell.Inner().([]byte)...)
	cell.Unlock()

	return ctx.Emit(component.PrimaryInput, component.NewValue(BufferTag, buf))
}
