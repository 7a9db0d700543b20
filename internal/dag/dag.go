package dag

import (
	"sort"

	"github.com/vk/assetgraph/internal/spec"
)

// Build validates a specification and constructs its graph. It fails with a
// *ValidationError when the node list is empty, when an id is empty or
// declared twice, or when an edge references an undeclared node. Duplicate
// edges between the same pair collapse to one.
func Build(s *spec.GraphSpec) (*Graph, error) {
	if s == nil || len(s.Nodes) == 0 {
		return nil, &ValidationError{Reason: "graph must contain at least one node"}
	}

	g := &Graph{
		order:    make([]string, 0, len(s.Nodes)),
		index:    make(map[string]int, len(s.Nodes)),
		nodes:    make(map[string]spec.NodeSpec, len(s.Nodes)),
		forward:  make(map[string][]string),
		reverse:  make(map[string][]string),
		inDegree: make(map[string]int, len(s.Nodes)),
	}

	for _, n := range s.Nodes {
		if n.ID == "" {
			return nil, &ValidationError{Reason: "node id must not be empty", Ref: "type " + n.Type}
		}
		if _, exists := g.nodes[n.ID]; exists {
			return nil, &ValidationError{Reason: "duplicate node id", Ref: n.ID}
		}
		g.index[n.ID] = len(g.order)
		g.order = append(g.order, n.ID)
		g.nodes[n.ID] = n
		g.inDegree[n.ID] = 0
	}

	seen := make(map[spec.EdgeSpec]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, &ValidationError{Reason: "edge references non-existent node", Ref: e.From}
		}
		if _, ok := g.nodes[e.To]; !ok {
			return nil, &ValidationError{Reason: "edge references non-existent node", Ref: e.To}
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		g.edges = append(g.edges, e)
		g.forward[e.From] = append(g.forward[e.From], e.To)
		g.reverse[e.To] = append(g.reverse[e.To], e.From)
		g.inDegree[e.To]++
	}

	// Adjacency lists follow declaration order so every consumer breaks
	// ties the same way regardless of how edges were listed.
	for _, adj := range []map[string][]string{g.forward, g.reverse} {
		for id := range adj {
			g.sortByDeclaration(adj[id])
		}
	}

	return g, nil
}

func (g *Graph) sortByDeclaration(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return g.index[ids[i]] < g.index[ids[j]]
	})
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// NodeIDs returns every node id in declaration order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Node returns the specification of the node with the given id.
func (g *Graph) Node(id string) (spec.NodeSpec, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Index returns the declaration position of id, or -1 if it is unknown.
func (g *Graph) Index(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// DependenciesOf returns the ids that must complete before id may run, in
// declaration order. Entry nodes have none.
func (g *Graph) DependenciesOf(id string) []string {
	return append([]string(nil), g.reverse[id]...)
}

// Dependents returns the ids that directly depend on id, in declaration order.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.forward[id]...)
}

// InDegree returns the number of distinct dependencies of id.
func (g *Graph) InDegree(id string) int {
	return g.inDegree[id]
}

// EntryPoints returns every node without dependencies, in declaration order.
func (g *Graph) EntryPoints() []string {
	var entries []string
	for _, id := range g.order {
		if g.inDegree[id] == 0 {
			entries = append(entries, id)
		}
	}
	return entries
}

// Edges returns the deduplicated edges in declaration order.
func (g *Graph) Edges() []spec.EdgeSpec {
	return append([]spec.EdgeSpec(nil), g.edges...)
}
