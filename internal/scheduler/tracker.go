package scheduler

import "github.com/vk/assetgraph/internal/dag"

// Tracker hands out nodes as their dependencies are released. It is not safe
// for concurrent use; the engine drives it from a single goroutine.
type Tracker struct {
	g         *dag.Graph
	remaining map[string]int
	released  map[string]bool
}

// NewTracker returns a tracker positioned at the start of a run over g.
func NewTracker(g *dag.Graph) *Tracker {
	t := &Tracker{
		g:         g,
		remaining: make(map[string]int, g.Len()),
		released:  make(map[string]bool, g.Len()),
	}
	for _, id := range g.NodeIDs() {
		t.remaining[id] = g.InDegree(id)
	}
	return t
}

// Ready returns the nodes that are runnable before anything has finished.
func (t *Tracker) Ready() []string {
	return t.g.EntryPoints()
}

// Release records that id finished successfully and returns the dependents
// whose last outstanding dependency it was, in declaration order. Releasing
// the same id twice is a no-op.
func (t *Tracker) Release(id string) []string {
	if t.released[id] {
		return nil
	}
	t.released[id] = true

	var ready []string
	for _, dep := range t.g.Dependents(id) {
		t.remaining[dep]--
		if t.remaining[dep] == 0 {
			ready = append(ready, dep)
		}
	}
	return ready
}

// Downstream returns every node transitively reachable from id, excluding id
// itself, in declaration order.
func (t *Tracker) Downstream(id string) []string {
	return t.closure(id, t.g.Dependents)
}

// Upstream returns every node id transitively depends on, in declaration
// order.
func (t *Tracker) Upstream(id string) []string {
	return t.closure(id, t.g.DependenciesOf)
}

func (t *Tracker) closure(id string, next func(string) []string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next(cur) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}

	var out []string
	for _, n := range t.g.NodeIDs() {
		if n != id && seen[n] {
			out = append(out, n)
		}
	}
	return out
}
