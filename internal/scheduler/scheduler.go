package scheduler

import (
	"fmt"
	"strings"

	"github.com/vk/assetgraph/internal/dag"
)

// CycleError reports that a graph cannot be ordered.
type CycleError struct {
	// Nodes lists the ids found on a cycle, in traversal order.
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("graph contains a cycle. Involved nodes might include: [%s]", strings.Join(e.Nodes, ", "))
}

// Order returns every node of g in an order where each node follows all of
// its dependencies. Ties are broken by declaration order, so the same graph
// always yields the same order. A cyclic graph yields a *CycleError.
func Order(g *dag.Graph) ([]string, error) {
	inDegree := make(map[string]int, g.Len())
	queue := make([]string, 0, g.Len())
	for _, id := range g.NodeIDs() {
		inDegree[id] = g.InDegree(id)
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, g.Len())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dep := range g.Dependents(id) {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) == g.Len() {
		return order, nil
	}

	ordered := make(map[string]bool, len(order))
	for _, id := range order {
		ordered[id] = true
	}
	return nil, &CycleError{Nodes: findCycle(g, ordered)}
}

// findCycle walks the nodes Kahn's algorithm could not order and returns the
// first cycle it meets. Every unordered node either sits on a cycle or
// depends on one, so the walk always finds one.
func findCycle(g *dag.Graph, ordered map[string]bool) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onStack[id] = len(stack)
		stack = append(stack, id)

		for _, next := range g.Dependents(id) {
			if ordered[next] {
				continue
			}
			if pos, ok := onStack[next]; ok {
				cycle = append([]string(nil), stack[pos:]...)
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		return false
	}

	for _, id := range g.NodeIDs() {
		if ordered[id] || visited[id] {
			continue
		}
		if visit(id) {
			return cycle
		}
	}

	// Unreachable for a graph Kahn's algorithm rejected; report the
	// leftovers rather than nothing.
	var rest []string
	for _, id := range g.NodeIDs() {
		if !ordered[id] {
			rest = append(rest, id)
		}
	}
	return rest
}
