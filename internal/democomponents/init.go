package democomponents

import "firestige.xyz/visionflow/pkg/component"

// Register adds every demo component type under its spec.md §8 scenario
// name to the global component registry, mirroring the teacher's
// plugins/init.go pattern of one explicit registration call per type
// rather than package-level init() side effects, so the demo harness
// controls exactly when these fixtures become visible.
func Register() {
	component.Register("camera", func() component.Component { return Clone{} })
	component.Register("clone", func() component.Component { return Clone{} })
	component.Register("debug", func() component.Component { return Debug{} })
	component.Register("split", func() component.Component { return Split{} })
	component.Register("square", func() component.Component { return Square{} })
	component.Register("collect-vec", func() component.Component { return CollectVec{} })
	component.Register("fps", func() component.Component { return &FPS{} })
	component.Register("nt", func() component.Component { return &NT{} })
	component.Register("canvas", func() component.Component { return Canvas{} })
	component.Register("blob-source", func() component.Component { return BlobSource{} })
	component.Register("draw", func() component.Component { return Draw{} })
	component.Register("select-last", func() component.Component { return SelectLast{} })
	component.Register("unpack", func() component.Component { return Unpack{} })
}
