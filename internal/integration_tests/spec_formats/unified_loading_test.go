package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/app"
	"github.com/vk/assetgraph/internal/testutil"
)

// runDir writes files into a temporary directory, runs the directory as one
// graph and returns the final state.
func runDir(t *testing.T, files map[string]string) (map[string]any, *testutil.ScriptModule) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	cfg, err := app.NewConfig(app.Config{
		SpecPaths: []string{dir},
		Workers:   2,
		StateMode: app.StateModeIsolated,
	})
	require.NoError(t, err)

	script := testutil.NewScriptModule()
	out := &bytes.Buffer{}
	a := app.NewApp(out, &testutil.SafeBuffer{}, cfg, script)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Run(context.Background()))

	var final map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &final))
	return final, script
}

// Test for: JSON, YAML and HCL files in one directory form a single graph,
// and edges may reference nodes declared in another file.
func TestSpecFormats_UnifiedLoading(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"01_source.json": `{"nodes": [{"id": "source", "type": "Emit", "params": {"state": {"ticker": "AAPL"}}}]}`,
		"02_middle.yaml": `
nodes:
  - id: middle
    type: Emit
    params:
      value: forty-two
edges:
  - {from: source, to: middle}
`,
		"03_sink.hcl": `
node "sink" {
  type       = "Emit"
  depends_on = ["middle"]
  params = {
    state = { summary = "done" }
  }
}
`,
		"README.md": "ignored",
	}

	// --- Act ---
	final, script := runDir(t, files)

	// --- Assert ---
	assert.Equal(t, []string{"source", "middle", "sink"}, script.Invoked())
	assert.Equal(t, "AAPL", final["ticker"])
	assert.Equal(t, "done", final["summary"])

	sink, ok := script.Call("sink")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"middle": "forty-two"}, sink.Deps)
	assert.Equal(t, "AAPL", sink.State.String("ticker"), "transitive upstream state is visible")
}

// Test for: HCL params can read the process environment.
func TestSpecFormats_HCLEnvironmentParams(t *testing.T) {
	// --- Arrange ---
	t.Setenv("ASSETGRAPH_IT_TICKER", "NVDA")
	files := map[string]string{
		"graph.hcl": `
node "pick" {
  type   = "Emit"
  params = {
    value = env.ASSETGRAPH_IT_TICKER
    state = { current = env.ASSETGRAPH_IT_TICKER }
  }
}
`,
	}

	// --- Act ---
	final, script := runDir(t, files)

	// --- Assert ---
	assert.Equal(t, "NVDA", final["current"])
	pick, ok := script.Call("pick")
	require.True(t, ok)
	assert.Empty(t, pick.Deps)
}
