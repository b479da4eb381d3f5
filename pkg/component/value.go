// Package component defines the contract between the pipeline core and the
// processing components it drives. Components never import the runtime;
// they only see the types in this package.
package component

import "sync"

// TypeTag is an opaque, comparable identifier for a Value's runtime type.
// Two values interoperate on a wire iff their producer's declared output
// type tag equals the consumer's declared input type tag.
type TypeTag struct {
	name string
}

// NewTypeTag creates a TypeTag from a human-readable name. Components of a
// given domain should share a small, well-known set of tags (e.g. "frame",
// "int", "blob") rather than minting one per call site.
func NewTypeTag(name string) TypeTag { return TypeTag{name: name} }

func (t TypeTag) String() string { return t.name }

// IsZero reports whether the tag was never assigned.
func (t TypeTag) IsZero() bool { return t.name == "" }

// Value is a heap-allocated, immutable-by-default payload. It is cheap to
// copy: a Value is a small struct (a tag plus an any), so cloning it never
// deep-copies the payload — the last holder to drop its copy lets the Go
// garbage collector reclaim the underlying data, which is what spec.md §3's
// "shared-ownership semantics (cheap clone; last holder drops)" maps to in a
// garbage-collected language; there is no manual refcount to get wrong.
type Value struct {
	tag     TypeTag
	payload any
}

// NewValue wraps payload with the given type tag.
func NewValue(tag TypeTag, payload any) Value {
	return Value{tag: tag, payload: payload}
}

// Tag returns the value's runtime type tag.
func (v Value) Tag() TypeTag { return v.tag }

// Payload returns the underlying payload. Callers must not mutate a payload
// reached this way unless it is wrapped in a Cell (see below).
func (v Value) Payload() any { return v.payload }

// Clone returns a copy of the Value. Because Value holds only a tag and an
// interface value, this never copies the referenced payload itself.
func (v Value) Clone() Value { return v }

// IsZero reports whether v is the zero Value (no tag, no payload).
func (v Value) IsZero() bool { return v.tag.IsZero() && v.payload == nil }

// Cell wraps a mutable payload so exactly one holder at a time can access
// it, preserving the immutable-by-default contract for everything that
// isn't explicitly opted into shared mutation (e.g. "draw onto this
// canvas"). A Value carrying a *Cell as its payload is how a component
// advertises "this output may be mutated in place downstream."
type Cell struct {
	mu    sync.Mutex
	inner any
}

// NewCell wraps inner in a guarded cell.
func NewCell(inner any) *Cell {
	return &Cell{inner: inner}
}

// Lock acquires exclusive access to the cell's contents.
func (c *Cell) Lock() { c.mu.Lock() }

// Unlock releases exclusive access. Callers must hold the lock.
func (c *Cell) Unlock() { c.mu.Unlock() }

// Inner returns the wrapped payload. Callers must hold the lock (via Lock)
// before reading or mutating whatever Inner returns.
func (c *Cell) Inner() any { return c.inner }

// SetInner replaces the wrapped payload. Callers must hold the lock.
func (c *Cell) SetInner(v any) { c.inner = v }

// With runs fn with the cell locked, passing and then storing back
// whatever fn returns. It is the common-case safe accessor; components
// doing multi-step mutation (lock, draw several times, unlock) should use
// Lock/Unlock directly instead.
func (c *Cell) With(fn func(inner any) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner = fn(c.inner)
}
