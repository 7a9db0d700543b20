package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/spec"
)

// ErrNoGraph is returned when neither an example nor a path was configured.
var ErrNoGraph = errors.New("no graph specification given")

// LoadGraph reads the configured example or specification paths.
func (a *App) LoadGraph(ctx context.Context) (*spec.GraphSpec, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)

	if a.config.Example != "" {
		logger.Debug("Loading embedded example.", "example", a.config.Example)
		gs, err := loadExample(a.config.Example)
		if err != nil {
			return nil, fmt.Errorf("failed to load example: %w", err)
		}
		return gs, nil
	}

	if len(a.config.SpecPaths) == 0 {
		return nil, ErrNoGraph
	}
	logger.Debug("Loading specifications...", "paths", a.config.SpecPaths)
	gs, err := spec.Load(ctx, a.config.SpecPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	logger.Info("Graph loaded successfully.", "nodes", len(gs.Nodes), "edges", len(gs.Edges))
	return gs, nil
}
