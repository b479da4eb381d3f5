package component

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContext is a minimal Context used to exercise Component implementors
// in isolation, without pulling in the runtime package.
type fakeContext struct {
	primary Value
	hasPri  bool
	named   map[string]Value
	all     map[string][]Value
	emitted map[string][]Value
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		named:   make(map[string]Value),
		all:     make(map[string][]Value),
		emitted: make(map[string][]Value),
	}
}

func (c *fakeContext) GetPrimary() (Value, bool)        { return c.primary, c.hasPri }
func (c *fakeContext) GetNamed(name string) (Value, bool) {
	v, ok := c.named[name]
	return v, ok
}
func (c *fakeContext) GetNamedAll(name string) []Value { return c.all[name] }
func (c *fakeContext) Emit(channel string, v Value) error {
	c.emitted[channel] = append(c.emitted[channel], v)
	return nil
}
func (c *fakeContext) RunID() string        { return "test-run" }
func (c *fakeContext) SourceName() string   { return "test-source" }
func (c *fakeContext) PipelineID() string   { return "deadbeef" }
func (c *fakeContext) LogSpan() LogSpan     { return nopLogSpan{} }
func (c *fakeContext) Context() context.Context { return context.Background() }

type nopLogSpan struct{}

func (nopLogSpan) Debug(args ...any)                      {}
func (nopLogSpan) Debugf(format string, args ...any)      {}
func (nopLogSpan) Info(args ...any)                       {}
func (nopLogSpan) Infof(format string, args ...any)       {}
func (nopLogSpan) Warn(args ...any)                       {}
func (nopLogSpan) Warnf(format string, args ...any)       {}
func (nopLogSpan) Error(args ...any)                      {}
func (nopLogSpan) Errorf(format string, args ...any)      {}
func (nopLogSpan) WithField(key string, value any) LogSpan { return nopLogSpan{} }
func (nopLogSpan) WithFields(fields map[string]any) LogSpan { return nopLogSpan{} }
func (nopLogSpan) WithError(err error) LogSpan            { return nopLogSpan{} }

// doubler reads its primary int input and emits it doubled.
type doubler struct{}

var intType = NewTypeTag("int")

func (doubler) Descriptor() Descriptor {
	return Descriptor{
		Inputs:  []InputSpec{{Name: PrimaryInput, Required: true, ValueType: intType}},
		Outputs: map[string]OutputSpec{"primary": {Kind: Single, ValueType: intType}},
	}
}

func (doubler) Run(ctx Context) error {
	v, ok := ctx.GetPrimary()
	if !ok {
		return nil
	}
	n := v.Payload().(int)
	return ctx.Emit("primary", NewValue(intType, n*2))
}

func TestComponent_RunEmitsTransformedValue(t *testing.T) {
	ctx := newFakeContext()
	ctx.primary = NewValue(intType, 21)
	ctx.hasPri = true

	var c Component = doubler{}
	require.NoError(t, c.Run(ctx))

	emitted := ctx.emitted["primary"]
	require.Len(t, emitted, 1)
	assert.Equal(t, 42, emitted[0].Payload())
}

func TestDescriptor_HasPrimaryInput(t *testing.T) {
	d := doubler{}.Descriptor()
	assert.True(t, d.HasPrimaryInput())

	named := Descriptor{Inputs: []InputSpec{{Name: "elem"}, {Name: "ref"}}}
	assert.False(t, named.HasPrimaryInput())
}

func TestValue_CloneIsCheap(t *testing.T) {
	v := NewValue(intType, 7)
	clone := v.Clone()
	assert.Equal(t, v.Tag(), clone.Tag())
	assert.Equal(t, v.Payload(), clone.Payload())
}

func TestCell_ExclusiveAccess(t *testing.T) {
	c := NewCell(0)
	c.With(func(inner any) any { return inner.(int) + 1 })
	c.With(func(inner any) any { return inner.(int) + 1 })

	c.Lock()
	defer c.Unlock()
	assert.Equal(t, 2, c.Inner())
}
