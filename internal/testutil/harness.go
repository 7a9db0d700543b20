package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/spec"
)

// HarnessResult holds the outcomes of a harness run.
type HarnessResult struct {
	LogOutput string
	Result    *engine.Result
	Script    *ScriptModule
}

// RunGraph runs s against a registry holding ScriptModule plus extra modules
// and captures the debug log.
func RunGraph(t *testing.T, s *spec.GraphSpec, opts engine.Options, extra ...registry.Module) *HarnessResult {
	t.Helper()
	return RunGraphWithContext(context.Background(), t, s, opts, extra...)
}

// RunGraphWithContext is RunGraph with a caller-provided context.
func RunGraphWithContext(ctx context.Context, t *testing.T, s *spec.GraphSpec, opts engine.Options, extra ...registry.Module) *HarnessResult {
	t.Helper()

	script := NewScriptModule()
	reg := registry.New()
	require.NoError(t, reg.RegisterModules(append([]registry.Module{script}, extra...)...))

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx = ctxlog.WithLogger(ctx, logger)

	res := engine.New(reg, opts).Run(ctx, s)

	if os.Getenv("ASSETGRAPH_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}
	return &HarnessResult{LogOutput: logBuffer.String(), Result: res, Script: script}
}
