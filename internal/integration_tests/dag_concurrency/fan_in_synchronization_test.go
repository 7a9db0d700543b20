package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/node"
)

// Test for: Fan-in synchronization waits for all parallel nodes.
func TestDagConcurrency_FanInSynchronization(t *testing.T) {
	// --- Arrange ---
	doc := `
nodes:
  - {id: A, type: Sleep, params: {ms: 60, value: a}}
  - {id: B, type: Sleep, params: {ms: 80, value: b}}
  - {id: C, type: Sleep, params: {ms: 100, value: c}}
  - {id: D, type: Emit}
edges:
  - {from: A, to: D}
  - {from: B, to: D}
  - {from: C, to: D}
`

	// --- Act ---
	nodes, script := runGraphFile(t, "fan_in.yaml", doc, 4)

	// --- Assert ---
	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, node.Done, nodes[id].Status, id)
	}

	d, ok := script.Call("D")
	require.True(t, ok)
	for _, id := range []string{"A", "B", "C"} {
		prereq, ok := script.Call(id)
		require.True(t, ok)
		assert.False(t, d.Start.Before(prereq.End), "D started before %s finished", id)
	}
	assert.Equal(t, map[string]any{"A": "a", "B": "b", "C": "c"}, d.Deps)
}
