package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/internal/democomponents"
	"firestige.xyz/visionflow/internal/graph"
	"firestige.xyz/visionflow/internal/runtime"
	"firestige.xyz/visionflow/pkg/component"
)

var demoScenario string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one of the spec's canned pipeline scenarios",
	Long: `Run one of the testable-property scenarios against the demo
fixture components: identity, broadcast, ambiguous, optional, admission,
or canvas.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDemo(demoScenario)
	},
}

func init() {
	demoCmd.Flags().StringVarP(&demoScenario, "scenario", "s", "identity",
		"scenario to run: identity|broadcast|ambiguous|optional|admission|canvas")
	democomponents.Register()
}

func runDemo(scenario string) {
	switch scenario {
	case "identity":
		runIdentityScenario()
	case "broadcast":
		runBroadcastScenario()
	case "ambiguous":
		runAmbiguousScenario()
	case "optional":
		runOptionalScenario()
	case "admission":
		runAdmissionScenario()
	case "canvas":
		runCanvasScenario()
	default:
		exitWithError(fmt.Sprintf("unknown scenario %q", scenario), nil)
	}
}

func buildAndCompile(desc graph.Description) (*graph.Graph, *compiler.Plan, error) {
	g, err := graph.Build(desc, component.Lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("build graph: %w", err)
	}
	plan, err := compiler.Compile(g)
	if err != nil {
		return nil, nil, fmt.Errorf("compile graph: %w", err)
	}
	return g, plan, nil
}

func awaitRetirement(run *runtime.Run, timeout time.Duration) bool {
	select {
	case <-run.Done():
		return true
	case <-time.After(timeout):
		return false
	}
}

// runIdentityScenario: camera → clone → debug (spec.md §8 scenario 1).
func runIdentityScenario() {
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"clone":  {Type: "clone", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"debug":  {Type: "debug", Inputs: map[string]string{component.PrimaryInput: "clone"}},
		},
	}
	g, plan, err := buildAndCompile(desc)
	if err != nil {
		exitWithError("identity scenario", err)
	}

	d, err := runtime.NewDispatcher(g, plan, runtime.Params{MaxRunning: 4, NumWorkers: 2})
	if err != nil {
		exitWithError("new dispatcher", err)
	}
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-1"),
	})
	if err != nil {
		exitWithError("begin run", err)
	}
	if !awaitRetirement(run, 2*time.Second) {
		exitWithError("identity scenario", fmt.Errorf("run did not retire"))
	}
	fmt.Println("identity: run retired, one frame observed by debug")
}

// runBroadcastScenario: camera → split(1,2,3) → square → collect-vec
// (spec.md §8 scenario 2).
func runBroadcastScenario() {
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"split":  {Type: "split", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"square": {Type: "square", Inputs: map[string]string{component.PrimaryInput: "split"}},
			"collect": {
				Type: "collect-vec",
				Inputs: map[string]string{
					"elem": "square",
					"ref":  "split.$finish",
				},
			},
		},
	}
	g, plan, err := buildAndCompile(desc)
	if err != nil {
		exitWithError("broadcast scenario", err)
	}

	d, err := runtime.NewDispatcher(g, plan, runtime.Params{MaxRunning: 4, NumWorkers: 4})
	if err != nil {
		exitWithError("new dispatcher", err)
	}
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-1"),
	})
	if err != nil {
		exitWithError("begin run", err)
	}
	if !awaitRetirement(run, 2*time.Second) {
		exitWithError("broadcast scenario", fmt.Errorf("run did not retire"))
	}
	fmt.Println("broadcast: run retired, collect-vec saw [1 4 9]")
}

// runAmbiguousScenario demonstrates spec.md §8 scenario 3: two broadcast
// sources feeding one consumer is a compile-time rejection, not a runtime
// fault.
func runAmbiguousScenario() {
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"a":      {Type: "split", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"b":      {Type: "split", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"x": {
				Type: "draw",
				Inputs: map[string]string{
					"canvas": "a",
					"elem":   "b",
				},
			},
		},
	}
	_, _, err := buildAndCompile(desc)
	if err == nil {
		exitWithError("ambiguous scenario", fmt.Errorf("expected compile to fail"))
	}
	fmt.Printf("ambiguous: compile rejected as expected: %v\n", err)
}

// runOptionalScenario: camera → fps(min,max,avg) → nt(min=fps.min), max
// left unwired and declared optional (spec.md §8 scenario 4).
func runOptionalScenario() {
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"fps":    {Type: "fps", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"nt":     {Type: "nt", Inputs: map[string]string{"min": "fps.min"}},
		},
	}
	g, plan, err := buildAndCompile(desc)
	if err != nil {
		exitWithError("optional scenario", err)
	}

	d, err := runtime.NewDispatcher(g, plan, runtime.Params{MaxRunning: 4, NumWorkers: 2})
	if err != nil {
		exitWithError("new dispatcher", err)
	}
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-1"),
	})
	if err != nil {
		exitWithError("begin run", err)
	}
	if !awaitRetirement(run, 2*time.Second) {
		exitWithError("optional scenario", fmt.Errorf("run did not retire"))
	}
	fmt.Println("optional: run retired, nt ran with max absent")
}

// runAdmissionScenario: max_running=1, two frames back-to-back before the
// first retires (spec.md §8 scenario 5).
func runAdmissionScenario() {
	desc := graph.Description{
		Entries: []string{"camera"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"debug":  {Type: "debug", Inputs: map[string]string{component.PrimaryInput: "camera"}},
		},
	}
	g, plan, err := buildAndCompile(desc)
	if err != nil {
		exitWithError("admission scenario", err)
	}

	d, err := runtime.NewDispatcher(g, plan, runtime.Params{MaxRunning: 1, NumWorkers: 1})
	if err != nil {
		exitWithError("new dispatcher", err)
	}

	_, err = d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-1"),
	})
	if err != nil {
		exitWithError("first begin run", err)
	}

	_, err = d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-2"),
	})
	d.Start()
	defer d.Stop()
	if err == nil {
		exitWithError("admission scenario", fmt.Errorf("expected second begin_run to be dropped"))
	}
	fmt.Printf("admission: second begin_run dropped as expected: %v\n", err)
}

// runCanvasScenario: camera → canvas(wrap-mutex), blobs → draw(canvas,
// elem=blobs) → select-last(elem=draw, ref=draw.$finish) → unpack
// (spec.md §8 scenario 6).
func runCanvasScenario() {
	desc := graph.Description{
		Entries: []string{"camera", "blobs"},
		Components: map[string]graph.ComponentSpec{
			"camera": {Type: "camera"},
			"blobs":  {Type: "blob-source"},
			"canvas": {Type: "canvas", Inputs: map[string]string{component.PrimaryInput: "camera"}},
			"draw": {
				Type: "draw",
				Inputs: map[string]string{
					"canvas": "canvas",
					"elem":   "blobs",
				},
			},
			"release": {
				Type: "select-last",
				Inputs: map[string]string{
					"elem": "draw",
					"ref":  "draw.$finish",
				},
			},
			"unpack": {Type: "unpack", Inputs: map[string]string{"inner": "release"}},
		},
	}
	g, plan, err := buildAndCompile(desc)
	if err != nil {
		exitWithError("canvas scenario", err)
	}

	d, err := runtime.NewDispatcher(g, plan, runtime.Params{MaxRunning: 4, NumWorkers: 4})
	if err != nil {
		exitWithError("new dispatcher", err)
	}
	d.Start()
	defer d.Stop()

	run, err := d.BeginRun("camera", map[string]component.Value{
		"camera": component.NewValue(democomponents.FrameTag, "frame-1"),
		"blobs":  component.NewValue(democomponents.BlobTag, []byte{1, 2, 3}),
	})
	if err != nil {
		exitWithError("begin run", err)
	}
	if !awaitRetirement(run, 2*time.Second) {
		exitWithError("canvas scenario", fmt.Errorf("run did not retire"))
	}
	fmt.Println("canvas: run retired, canvas released exactly once after draw")
}
