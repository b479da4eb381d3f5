// Package graph holds the declared component graph: named component
// instances and the wires between their channels. It knows nothing about
// broadcast depth, aggregation scopes, or scheduling — that belongs to
// internal/compiler and internal/runtime. Graph only resolves the
// already-parsed graph description (spec.md §6) into a structural model a
// compiler can walk.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"firestige.xyz/visionflow/pkg/component"
)

// ChannelID identifies one output channel of one component instance.
// Channel == "" means the component's primary (unnamed) output.
type ChannelID struct {
	Component string
	Channel   string
}

func (c ChannelID) String() string {
	if c.Channel == "" {
		return c.Component
	}
	return c.Component + "." + c.Channel
}

// ConsumerRef identifies one input slot of one component instance.
// Input == component.PrimaryInput means the component's primary input.
type ConsumerRef struct {
	Component string
	Input     string
}

// Wire connects one producer channel to one consumer input slot.
type Wire struct {
	Consumer ConsumerRef
	Producer ChannelID
}

// ComponentSpec is one entry of an already-parsed graph description: a
// named component instance, its declared type, construction options, and
// its input wiring expressed in the "producer" / "producer.channel"
// reference syntax of spec.md §6.
type ComponentSpec struct {
	Type    string
	Options map[string]any
	// Inputs maps input name (component.PrimaryInput for the primary slot)
	// to a channel reference string: "name" (producer's primary output),
	// "name.ch" (a named output channel), or "name.$finish".
	Inputs map[string]string
}

// Description is the parsed graph description the core consumes. It is
// already a Go data structure — turning structured text into this shape is
// an out-of-scope, source-level concern (spec.md §1).
type Description struct {
	Components map[string]ComponentSpec
	// Entries names the components that are graph entry points (cameras
	// and equivalents): begin_run seeds these directly, so they are
	// exempt from the "every required input must be wired" rule.
	Entries []string
}

// Instance is a resolved component instance: its name, declared type, and
// the static Descriptor read from the registered factory.
type Instance struct {
	Name       string
	Type       string
	Descriptor component.Descriptor
	Factory    component.Factory
}

// Graph is the resolved structural model: instances plus wires, ready for
// the compiler to validate and compile into a Plan.
type Graph struct {
	Instances map[string]Instance
	Wires     []Wire
	Entries   []string
}

// ReservedPrefix marks channel names the runtime synthesizes; a graph
// description may reference such a channel (most commonly $finish) but may
// not declare a component output under a reserved name.
const ReservedPrefix = "$"

// ParseChannelRef parses a producer-side reference string ("name",
// "name.ch", or "name.$finish") into a ChannelID. A bare "$finish" with no
// producer name is rejected.
func ParseChannelRef(ref string) (ChannelID, error) {
	if ref == "" {
		return ChannelID{}, fmt.Errorf("graph: empty channel reference")
	}
	if ref == component.FinishChannel {
		return ChannelID{}, fmt.Errorf("graph: %q must be qualified with a producer name", ref)
	}
	if idx := strings.IndexByte(ref, '.'); idx >= 0 {
		producer, channel := ref[:idx], ref[idx+1:]
		if producer == "" || channel == "" {
			return ChannelID{}, fmt.Errorf("graph: malformed channel reference %q", ref)
		}
		return ChannelID{Component: producer, Channel: channel}, nil
	}
	return ChannelID{Component: ref, Channel: ""}, nil
}

// Build resolves a Description into a Graph, looking up each component
// instance's type in the registry. It does not validate wiring — that is
// internal/compiler's job — but it does reject references to unregistered
// component types, since there is no Descriptor to build a Graph without
// one.
func Build(desc Description, lookup func(string) (component.Factory, error)) (*Graph, error) {
	g := &Graph{
		Instances: make(map[string]Instance, len(desc.Components)),
		Entries:   append([]string(nil), desc.Entries...),
	}

	names := make([]string, 0, len(desc.Components))
	for name := range desc.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := desc.Components[name]
		factory, err := lookup(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("component %q: type %q: %w", name, spec.Type, err)
		}
		instance := factory()
		g.Instances[name] = Instance{
			Name:       name,
			Type:       spec.Type,
			Descriptor: instance.Descriptor(),
			Factory:    factory,
		}
	}

	for _, name := range names {
		spec := desc.Components[name]
		inputNames := make([]string, 0, len(spec.Inputs))
		for input := range spec.Inputs {
			inputNames = append(inputNames, input)
		}
		sort.Strings(inputNames)

		for _, input := range inputNames {
			ref := spec.Inputs[input]
			producer, err := ParseChannelRef(ref)
			if err != nil {
				return nil, fmt.Errorf("component %q: input %q: %w", name, input, err)
			}
			g.Wires = append(g.Wires, Wire{
				Consumer: ConsumerRef{Component: name, Input: input},
				Producer: producer,
			})
		}
	}

	return g, nil
}

// WiresTo returns every wire feeding the named consumer component.
func (g *Graph) WiresTo(component string) []Wire {
	var out []Wire
	for _, w := range g.Wires {
		if w.Consumer.Component == component {
			out = append(out, w)
		}
	}
	return out
}

// WiresFrom returns every wire sourced from the named producer component.
func (g *Graph) WiresFrom(component string) []Wire {
	var out []Wire
	for _, w := range g.Wires {
		if w.Producer.Component == component {
			out = append(out, w)
		}
	}
	return out
}

// IsEntry reports whether name is a declared entry component.
func (g *Graph) IsEntry(name string) bool {
	for _, e := range g.Entries {
		if e == name {
			return true
		}
	}
	return false
}
