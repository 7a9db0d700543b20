package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/spec"
)

// Graph builds a specification from "from->to" pairs over nodes that all use
// typ. Use Node and Edges to build anything more elaborate.
func Graph(typ string, ids []string, edges ...[2]string) *spec.GraphSpec {
	s := &spec.GraphSpec{}
	for _, id := range ids {
		s.Nodes = append(s.Nodes, spec.NodeSpec{ID: id, Type: typ})
	}
	s.Edges = Edges(edges...)
	return s
}

// Node returns a node specification.
func Node(id, typ string, params map[string]any) spec.NodeSpec {
	return spec.NodeSpec{ID: id, Type: typ, Params: params}
}

// Edges converts "from->to" pairs into edge specifications.
func Edges(pairs ...[2]string) []spec.EdgeSpec {
	out := make([]spec.EdgeSpec, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, spec.EdgeSpec{From: p[0], To: p[1]})
	}
	return out
}

// AssertStatus checks the terminal status and error kind of each listed
// node. An empty kind only checks the status.
func AssertStatus(t *testing.T, res *engine.Result, want map[string]node.Status, kinds map[string]engine.ErrorKind) {
	t.Helper()
	require.Len(t, res.Nodes, len(want), "every declared node must have a result")
	for id, status := range want {
		got, ok := res.Nodes[id]
		require.True(t, ok, "missing result for node %q", id)
		require.Equal(t, status, got.Status, "status of node %q (error: %s)", id, got.Error)
		if k, ok := kinds[id]; ok {
			require.Equal(t, k, got.Kind, "error kind of node %q", id)
		}
	}
}
