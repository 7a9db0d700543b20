package dag

import (
	"fmt"

	"github.com/vk/assetgraph/internal/spec"
)

// Graph is a validated, read-only workflow graph.
type Graph struct {
	// order holds node ids in declaration order.
	order []string
	// index maps a node id to its declaration position.
	index map[string]int
	// nodes stores the node specifications keyed by id.
	nodes map[string]spec.NodeSpec
	// forward maps a node to the nodes that depend on it (successors).
	forward map[string][]string
	// reverse maps a node to the nodes it depends on (predecessors).
	reverse map[string][]string
	// inDegree counts incoming edges per node.
	inDegree map[string]int
	// edges holds the deduplicated edges in declaration order.
	edges []spec.EdgeSpec
}

// ValidationError reports a malformed specification.
type ValidationError struct {
	// Reason describes the violated rule.
	Reason string
	// Ref names the offending node id or edge. It may be empty.
	Ref string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Ref == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Ref)
}
