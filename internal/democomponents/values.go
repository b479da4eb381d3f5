// Package democomponents implements the fixture components exercised by
// the scenarios of spec.md §8 and the `cmd` demo harness. None of these
// are meant to run against real cameras or hardware; they stand in for
// the camera/blur/detector/publisher bodies spec.md §1 places out of the
// core's scope, the way the teacher's plugins/ tree stands in for real
// capture/parse/report backends behind the same Component-shaped seam.
package democomponents

import "firestige.xyz/visionflow/pkg/component"

var (
	// FrameTag tags an opaque camera frame payload.
	FrameTag = component.NewTypeTag("frame")
	// IntTag tags a plain int payload, used by the broadcast/collect demo.
	IntTag = component.NewTypeTag("int")
	// IntVecTag tags a []int payload: collect-vec's aggregated output.
	IntVecTag = component.NewTypeTag("int_vec")
	// StatsTag tags a single float64 statistic (fps min/max/avg).
	StatsTag = component.NewTypeTag("stat")
	// BlobTag tags a detected-blob payload drawn onto a canvas.
	BlobTag = component.NewTypeTag("blob")
	// CanvasTag tags a *component.Cell wrapping a mutable draw buffer.
	CanvasTag = component.NewTypeTag("canvas")
	// BufferTag tags the unwrapped byte buffer unpack produces.
	BufferTag = component.NewTypeTag("buffer")
)
