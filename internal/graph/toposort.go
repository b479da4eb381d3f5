package graph

import (
	"fmt"
	"sort"
)

// CycleError reports a detected cycle, naming every component on it so the
// caller can point at the offending wires directly rather than just saying
// "somewhere in here".
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: cycle detected among components %v", e.Members)
}

// TopoOrder returns the components of g in dependency order (a producer
// always precedes every consumer that wires to it), using Kahn's algorithm
// with sorted tie-breaking so that two equivalent graphs always yield the
// same order — the same determinism internal/plugin/registry.go's
// GetLoadOrder gives plugin load order, generalized here from "plugin
// dependency order" to "component data-dependency order".
//
// Entry components get no special treatment: they are seeded externally and
// normally have no incoming wires, so they start with in-degree zero.
func TopoOrder(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.Instances))
	dependents := make(map[string][]string)

	for name := range g.Instances {
		inDegree[name] = 0
	}

	for _, w := range g.Wires {
		producer := w.Producer.Component
		consumer := w.Consumer.Component
		if _, ok := g.Instances[producer]; !ok {
			// Unknown producers are a compiler-level concern
			// (MissingInput/UnknownComponent); topo sort only orders
			// what it can see.
			continue
		}
		inDegree[consumer]++
		dependents[producer] = append(dependents[producer], consumer)
	}

	queue := make([]string, 0, len(inDegree))
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.Instances))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		next := append([]string(nil), dependents[current]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(g.Instances) {
		remaining := make([]string, 0, len(g.Instances)-len(order))
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n] = true
		}
		for name := range g.Instances {
			if !seen[name] {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Members: remaining}
	}

	return order, nil
}
