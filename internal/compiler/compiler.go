package compiler

import (
	"fmt"
	"sort"

	"firestige.xyz/visionflow/internal/graph"
	"firestige.xyz/visionflow/pkg/component"
)

// Compile validates g and produces an executable Plan. It runs the five
// numbered steps of spec.md §4.1 as explicit, separately-testable phases —
// the way the teacher's TaskManager.Create assembles a task through named
// phases rather than one monolithic function.
func Compile(g *graph.Graph) (*Plan, error) {
	order, err := graph.TopoOrder(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}

	plan := &Plan{
		Components: make(map[string]*ComponentPlan, len(g.Instances)),
		Order:      order,
		Entries:    append([]string(nil), g.Entries...),
	}

	if err := buildComponentPlans(g, plan); err != nil {
		return nil, err
	}
	if err := computeBroadcastDepths(g, plan); err != nil {
		return nil, err
	}
	if err := typeCheck(g, plan); err != nil {
		return nil, err
	}
	buildRoutes(g, plan)

	return plan, nil
}

// buildComponentPlans resolves each component's declared inputs against its
// incoming wires: step 5 (required inputs, duplicate wires) plus the
// unknown-component/unknown-channel checks that step 1's topo sort
// deliberately leaves for the compiler to report precisely.
func buildComponentPlans(g *graph.Graph, plan *Plan) error {
	for _, name := range plan.Order {
		inst, ok := g.Instances[name]
		if !ok {
			return fmt.Errorf("component %q: %w", name, ErrUnknownComponent)
		}

		cp := &ComponentPlan{
			Name:       name,
			Type:       inst.Type,
			Descriptor: inst.Descriptor,
			Routes:     make(map[string][]RouteTarget),
			InputWires: make(map[string]graph.Wire),
		}
		plan.Components[name] = cp

		for _, spec := range inst.Descriptor.Inputs {
			if spec.Required {
				cp.RequiredInputs = append(cp.RequiredInputs, spec.Name)
			} else {
				cp.OptionalInputs = append(cp.OptionalInputs, spec.Name)
			}
		}

		wires := g.WiresTo(name)
		seen := make(map[string]bool, len(wires))
		for _, w := range wires {
			if seen[w.Consumer.Input] {
				return fmt.Errorf("component %q input %q: %w", name, inputLabel(w.Consumer.Input), ErrDuplicateWire)
			}
			seen[w.Consumer.Input] = true

			producer, ok := g.Instances[w.Producer.Component]
			if !ok {
				return fmt.Errorf("component %q input %q: producer %q: %w",
					name, inputLabel(w.Consumer.Input), w.Producer.Component, ErrUnknownComponent)
			}
			if w.Producer.Channel != component.FinishChannel {
				if _, ok := producer.Descriptor.Outputs[w.Producer.Channel]; !ok {
					return fmt.Errorf("component %q input %q: %w: channel %q on %q",
						name, inputLabel(w.Consumer.Input), ErrUnknownChannel, w.Producer.Channel, w.Producer.Component)
				}
			}
			if !declaresInput(inst.Descriptor, w.Consumer.Input) {
				return fmt.Errorf("component %q: %w: input %q not declared",
					name, ErrUnknownChannel, inputLabel(w.Consumer.Input))
			}

			cp.InputWires[w.Consumer.Input] = w
		}

		if g.IsEntry(name) {
			continue // entry inputs are seeded directly by begin_run, not wired.
		}
		for _, input := range cp.RequiredInputs {
			if _, ok := cp.InputWires[input]; !ok {
				return fmt.Errorf("component %q input %q: %w", name, inputLabel(input), ErrMissingInput)
			}
		}
	}
	return nil
}

// computeBroadcastDepths is step 2 and step 3 of spec.md §4.1: the max of a
// component's producers' depths (plus one per multiple-channel edge
// crossed), and the rule-3 ambiguity check among a non-aggregating
// consumer's inputs. Aggregating components collapse the deepest scope
// among all of their inputs instead of inheriting it.
func computeBroadcastDepths(g *graph.Graph, plan *Plan) error {
	for _, name := range plan.Order {
		cp := plan.Components[name]
		if g.IsEntry(name) {
			continue // an entry's BroadcastPath is nil: it is the dataflow root.
		}

		if cp.Descriptor.Aggregating {
			if _, ok := cp.InputWires["elem"]; !ok {
				return fmt.Errorf("component %q: %w: aggregating component has no elem input", name, ErrMissingInput)
			}

			// An aggregating component collapses the deepest scope among
			// ALL of its inputs, not just elem: the ref convention (spec's
			// "wiring ref to a $finish extends the window") only works if a
			// ref whose producer sits deeper than elem is the one that
			// determines the collapsed scope (e.g. elem reads a
			// shallow/unbroadcast value while ref tracks the broadcast that
			// must fully drain before the window closes).
			var deepest []ScopeID
			inputs := make([]string, 0, len(cp.InputWires))
			for input := range cp.InputWires {
				inputs = append(inputs, input)
			}
			sort.Strings(inputs)
			for _, input := range inputs {
				wire := cp.InputWires[input]
				producerPlan, ok := plan.Components[wire.Producer.Component]
				if !ok {
					continue // already reported as UnknownComponent.
				}
				path := producerPath(producerPlan, wire.Producer.Channel)
				if len(path) > len(deepest) {
					deepest = path
				}
			}
			if len(deepest) == 0 {
				return fmt.Errorf("component %q: %w: no input crosses a broadcast scope to collapse", name, ErrAmbiguousBroadcast)
			}
			scope := deepest[len(deepest)-1]
			cp.CollapsesScope = &scope
			cp.BroadcastPath = append([]ScopeID(nil), deepest[:len(deepest)-1]...)
			continue
		}

		inputs := make([]string, 0, len(cp.InputWires))
		for input := range cp.InputWires {
			inputs = append(inputs, input)
		}
		sort.Strings(inputs)

		var widest []ScopeID
		for i, input := range inputs {
			wire := cp.InputWires[input]
			producerPlan, ok := plan.Components[wire.Producer.Component]
			if !ok {
				continue // already reported as UnknownComponent.
			}
			path := producerPath(producerPlan, wire.Producer.Channel)
			if i == 0 {
				widest = path
				continue
			}
			if !pathsCompatible(widest, path) {
				return fmt.Errorf("component %q: %w", name, ErrAmbiguousBroadcast)
			}
			widest = deeper(widest, path)
		}
		cp.BroadcastPath = widest
	}
	return nil
}

// typeCheck is step 4: every wire's producer output type must equal the
// consumer input's declared type. $finish carries no payload and is exempt.
func typeCheck(g *graph.Graph, plan *Plan) error {
	for _, name := range plan.Order {
		cp := plan.Components[name]
		for input, wire := range cp.InputWires {
			if wire.Producer.Channel == component.FinishChannel {
				continue
			}
			producer, ok := g.Instances[wire.Producer.Component]
			if !ok {
				continue
			}
			outSpec, ok := producer.Descriptor.Outputs[wire.Producer.Channel]
			if !ok {
				continue // already reported as UnknownChannel.
			}
			inSpec, ok := findInput(cp.Descriptor, input)
			if !ok {
				continue // already reported as UnknownChannel.
			}
			if inSpec.ValueType != outSpec.ValueType {
				return fmt.Errorf("component %q input %q: producer %s has type %q, consumer expects %q: %w",
					name, inputLabel(input), wire.Producer, outSpec.ValueType, inSpec.ValueType, ErrTypeMismatch)
			}
		}
	}
	return nil
}

// buildRoutes emits the per-output-channel ordered target list (step 6):
// the routing table the dispatcher walks at emit time.
func buildRoutes(g *graph.Graph, plan *Plan) {
	for name, cp := range plan.Components {
		wires := append([]graph.Wire(nil), g.WiresFrom(name)...)
		sort.Slice(wires, func(i, j int) bool {
			if wires[i].Consumer.Component != wires[j].Consumer.Component {
				return wires[i].Consumer.Component < wires[j].Consumer.Component
			}
			return wires[i].Consumer.Input < wires[j].Consumer.Input
		})
		for _, w := range wires {
			cp.Routes[w.Producer.Channel] = append(cp.Routes[w.Producer.Channel], RouteTarget{
				Consumer: w.Consumer.Component,
				Input:    w.Consumer.Input,
			})
		}
	}
}

func declaresInput(d component.Descriptor, name string) bool {
	_, ok := findInput(d, name)
	return ok
}

func findInput(d component.Descriptor, name string) (component.InputSpec, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return component.InputSpec{}, false
}

func inputLabel(name string) string {
	if name == component.PrimaryInput {
		return "<primary>"
	}
	return name
}
