package integration_tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/app"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/testutil"
)

type runOutput struct {
	out  []byte
	logs string
	err  error
}

// runGraphFile writes doc to a temporary graph file and runs it through the
// app with the scripted node types.
func runGraphFile(t *testing.T, name, doc string, mode engine.ResultMode, nodeTimeout time.Duration) runOutput {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := app.NewConfig(app.Config{
		SpecPaths:   []string{path},
		Workers:     4,
		LogLevel:    "debug",
		NodeTimeout: nodeTimeout,
		ResultMode:  mode,
		StateMode:   app.StateModeIsolated,
	})
	require.NoError(t, err)

	out, logs := &bytes.Buffer{}, &testutil.SafeBuffer{}
	a := app.NewApp(out, logs, cfg, testutil.NewScriptModule())
	t.Cleanup(func() { _ = a.Close() })

	runErr := a.Run(context.Background())
	if os.Getenv("ASSETGRAPH_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
	}
	return runOutput{out: out.Bytes(), logs: logs.String(), err: runErr}
}
