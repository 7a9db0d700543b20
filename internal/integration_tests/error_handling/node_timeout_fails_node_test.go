package integration_tests

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/app"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/node"
)

// Test for: a node exceeding the node timeout fails, the rest of the run
// finishes normally.
func TestErrorHandling_NodeTimeoutFailsNode(t *testing.T) {
	// --- Arrange ---
	doc := `{
  "nodes": [
    {"id": "slow", "type": "Sleep", "params": {"ms": 5000}},
    {"id": "fast", "type": "Sleep", "params": {"ms": 1, "value": "done"}}
  ]
}`

	// --- Act ---
	start := time.Now()
	res := runGraphFile(t, "graph.json", doc, engine.ResultModeNodes, 50*time.Millisecond)

	// --- Assert ---
	assert.Less(t, time.Since(start), 2*time.Second, "timeout did not interrupt the slow node")
	require.ErrorIs(t, res.err, app.ErrRunFailed)

	var nodes map[string]engine.NodeResult
	require.NoError(t, json.Unmarshal(res.out, &nodes))
	assert.Equal(t, node.Error, nodes["slow"].Status)
	assert.Contains(t, nodes["slow"].Error, "node timed out after 50ms")
	assert.Equal(t, node.Done, nodes["fast"].Status)
}
