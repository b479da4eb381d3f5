package component

import "context"

// ChannelKind distinguishes single-valued outputs from broadcast outputs.
type ChannelKind int

const (
	// Single channels carry at most one value per invocation.
	Single ChannelKind = iota
	// Multiple channels carry zero or more values per invocation; each
	// emitted value starts a distinct downstream broadcast branch.
	Multiple
)

func (k ChannelKind) String() string {
	if k == Multiple {
		return "multiple"
	}
	return "single"
}

// FinishChannel is the implicit per-invocation synchronization channel.
// It carries no payload; it is emitted exactly once, when Run returns.
const FinishChannel = "$finish"

// PrimaryInput is the sentinel input name used by components that declare a
// single, unnamed input rather than a named set.
const PrimaryInput = ""

// InputSpec describes one named input slot of a component.
type InputSpec struct {
	Name      string
	Required  bool
	ValueType TypeTag
}

// OutputSpec describes one output channel of a component.
type OutputSpec struct {
	Kind      ChannelKind
	ValueType TypeTag
}

// Descriptor is the static, per-component-type shape the compiler validates
// and compiles against. It never depends on any particular instance's
// configuration.
type Descriptor struct {
	// Inputs is either a single entry named PrimaryInput, or a set of
	// distinctly-named entries. Compile does not check that the two forms
	// are not mixed.
	Inputs []InputSpec
	// Outputs maps output channel name to its shape. FinishChannel is
	// implicit and must not be listed here.
	Outputs map[string]OutputSpec
	// Aggregating marks a component that runs once per aggregation window
	// (collecting a sequence of values) rather than once per input tuple.
	Aggregating bool
}

// HasPrimaryInput reports whether d declares the single unnamed input form.
func (d Descriptor) HasPrimaryInput() bool {
	return len(d.Inputs) == 1 && d.Inputs[0].Name == PrimaryInput
}

// Component is the uniform capability set the core dispatches against. A
// concrete camera driver, image filter, detector, or publisher all satisfy
// this same interface; the core never knows which.
type Component interface {
	// Descriptor returns this component type's static shape.
	Descriptor() Descriptor
	// Run executes one invocation to completion. There is no suspension
	// point inside Run: it either returns, or the worker running it is
	// considered busy until it does.
	Run(ctx Context) error
}

// Context is the per-invocation handle a Component.Run uses to read its
// inputs, publish outputs, and reach ambient facilities (identity,
// logging). Context implementations live in the runtime package; this
// interface is what keeps components from importing it directly.
type Context interface {
	// GetPrimary returns the value delivered to this invocation's primary
	// input. ok is false if the (optional) primary input was never wired.
	GetPrimary() (Value, bool)
	// GetNamed returns the value delivered to the named input slot. ok is
	// false if the (optional) input was never wired or never arrived.
	GetNamed(name string) (Value, bool)
	// GetNamedAll returns every value collected in the aggregation window
	// for the named input, ordered by broadcast index (depth-first order of
	// the branches that produced them). Only meaningful for aggregating
	// components.
	GetNamedAll(name string) []Value
	// Emit publishes a value on the named output channel. Calling Emit a
	// second time on a Single channel within the same invocation is a
	// runtime fault (ErrEmitOnSingleTwice). Calling Emit on a name the
	// descriptor never declared is ErrEmitOnUnknownChannel.
	Emit(channel string, v Value) error

	// RunID returns the owning Run's identifier, hex-encoded.
	RunID() string
	// SourceName returns the human-readable name of the entry source that
	// seeded this run (the "%N" interpolation).
	SourceName() string
	// PipelineID returns RunID as 32 hex characters with no separators (the
	// "%i" interpolation).
	PipelineID() string
	// LogSpan returns a structured-logging handle scoped to this
	// invocation.
	LogSpan() LogSpan
	// Context returns a standard context.Context that is cancelled if the
	// owning Run is cancelled. Components do not suspend on it; it exists
	// so a component that must make an external blocking call of its own
	// (outside the core's concern) can observe cancellation.
	Context() context.Context
}

// LogSpan is the opaque structured-logging handle handed to components. It
// mirrors a small, common subset of a leveled structured logger so a
// component can log without depending on a concrete logging library.
type LogSpan interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) LogSpan
	WithFields(fields map[string]any) LogSpan
	WithError(err error) LogSpan
}
