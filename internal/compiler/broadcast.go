package compiler

import "firestige.xyz/visionflow/pkg/component"

// producerPath returns the broadcast path a value carries when it leaves
// the given channel of a component already compiled into producerPlan.
// Crossing a multiple channel appends a fresh scope; everything else
// (single channels, $finish) forwards the producer's own path unchanged,
// per spec.md §4.3 ("when a component emits on a single channel, the stack
// is forwarded unchanged").
func producerPath(producerPlan *ComponentPlan, channel string) []ScopeID {
	if channel == component.FinishChannel {
		return producerPlan.BroadcastPath
	}
	spec, ok := producerPlan.Descriptor.Outputs[channel]
	if !ok || spec.Kind != component.Multiple {
		return producerPlan.BroadcastPath
	}
	path := make([]ScopeID, len(producerPlan.BroadcastPath)+1)
	copy(path, producerPlan.BroadcastPath)
	path[len(path)-1] = ScopeID{Component: producerPlan.Name, Channel: channel}
	return path
}

// pathsCompatible implements rule 3 of the graph invariants (spec.md §3):
// two broadcast paths may only differ by one being a strict extension of
// the other — they must never diverge at a shared position.
func pathsCompatible(a, b []ScopeID) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// deeper returns the longer of two compatible paths — the one a
// non-aggregating consumer's own invocations run at, since it can only
// become schedulable once the deepest shared scope has produced its input.
func deeper(a, b []ScopeID) []ScopeID {
	if len(a) >= len(b) {
		return a
	}
	return b
}
