package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/app"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/testutil"
)

// runGraphFile writes doc to a temporary graph file, runs it through the app
// with the scripted node types and returns the per-node results.
func runGraphFile(t *testing.T, name, doc string, workers int) (map[string]engine.NodeResult, *testutil.ScriptModule) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(doc)), 0o600))

	cfg, err := app.NewConfig(app.Config{
		SpecPaths:  []string{path},
		Workers:    workers,
		LogLevel:   "debug",
		ResultMode: engine.ResultModeNodes,
		StateMode:  app.StateModeIsolated,
	})
	require.NoError(t, err)

	script := testutil.NewScriptModule()
	out, logs := &bytes.Buffer{}, &testutil.SafeBuffer{}
	a := app.NewApp(out, logs, cfg, script)
	t.Cleanup(func() {
		_ = a.Close()
		if os.Getenv("ASSETGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	require.NoError(t, a.Run(context.Background()))

	var nodes map[string]engine.NodeResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &nodes))
	return nodes, script
}
