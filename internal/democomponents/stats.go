package democomponents

import (
	"sync"
	"time"

	"firestige.xyz/visionflow/pkg/component"
)

// FPS tracks inter-invocation arrival time over a sliding window and
// publishes min/max/avg as three named single channels — spec.md §8
// scenario 4's fps producer.
type FPS struct {
	mu       sync.Mutex
	window   []time.Duration
	lastSeen time.Time
}

const fpsWindowSize = 16

func (f *FPS) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{{Name: component.PrimaryInput, Required: true, ValueType: FrameTag}},
		Outputs: map[string]component.OutputSpec{
			"min": {Kind: component.Single, ValueType: StatsTag},
			"max": {Kind: component.Single, ValueType: StatsTag},
			"avg": {Kind: component.Single, ValueType: StatsTag},
		},
	}
}

func (f *FPS) Run(ctx component.Context) error {
	min, max, avg := f.observe(time.Now())
	if err := ctx.Emit("min", component.NewValue(StatsTag, min)); err != nil {
		return err
	}
	if err := ctx.Emit("max", component.NewValue(StatsTag, max)); err != nil {
		return err
	}
	return ctx.Emit("avg", component.NewValue(StatsTag, avg))
}

// observe records now as a new arrival and returns the min/max/avg rate
// over the window in frames per second (1/dt of each inter-arrival interval).
// Component state is shared across concurrent invocations of the same
// instance at different broadcast prefixes (spec.md §5), hence the lock.
func (f *FPS) observe(now time.Time) (min, max, avg float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lastSeen.IsZero() {
		dt := now.Sub(f.lastSeen)
		f.window = append(f.window, dt)
		if len(f.window) > fpsWindowSize {
			f.window = f.window[len(f.window)-fpsWindowSize:]
		}
	}
	f.lastSeen = now

	if len(f.window) == 0 {
		return 0, 0, 0
	}
	min, max = toFPS(f.window[0]), toFPS(f.window[0])
	var sum float64
	for _, dt := range f.window {
		v := toFPS(dt)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(f.window))
}

func toFPS(dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	return float64(time.Second) / float64(dt)
}

// NT stands in for the NetworkTables publisher of spec.md §8 scenario 4:
// it consumes a required "min" and an optional "max" input and logs
// them. A real publisher is explicitly a process-wide collaborator
// outside the core's concern (spec.md §9); this fixture only exercises
// the optional-input-absent runtime path.
type NT struct {
	mu      sync.Mutex
	lastMin float64
	hadMax  bool
}

func (n *NT) Descriptor() component.Descriptor {
	return component.Descriptor{
		Inputs: []component.InputSpec{
			{Name: "min", Required: true, ValueType: StatsTag},
			{Name: "max", Required: false, ValueType: StatsTag},
		},
	}
}

func (n *NT) Run(ctx component.Context) error {
	minVal, _ := ctx.GetNamed("min")
	_, hadMax := ctx.GetNamed("max")

	n.mu.Lock()
	n.lastMin = minVal.Payload().(float64)
	n.hadMax = hadMax
	n.mu.Unlock()

	span := ctx.LogSpan().WithField("min", n.lastMin)
	if hadMax {
		span.Info("publishing fps stats")
	} else {
		span.Info("publishing fps stats without max (optional input absent)")
	}
	return nil
}
