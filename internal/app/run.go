package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/server"
)

// ErrRunFailed is returned by Run when the graph was rejected or any node
// failed. The result has already been written when it is returned.
var ErrRunFailed = errors.New("run finished with errors")

// Run executes the configured graph once and writes the result to the
// output writer in the configured result mode.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(ctx, a.config.HealthcheckPort); err != nil {
			return err
		}
		defer func() {
			if cerr := a.closeHealthCheckServer(ctx); err == nil {
				err = cerr
			}
		}()
	}

	gs, err := a.LoadGraph(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("🚀 Starting concurrent execution...", "workers", a.config.Workers, "stateMode", a.config.StateMode)
	res := a.Engine().Run(ctx, gs)

	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Payload(a.config.ResultMode)); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if res.Err != nil {
		return fmt.Errorf("%w: %w", ErrRunFailed, res.Err)
	}
	if res.Failed() {
		return fmt.Errorf("%w: %d error(s)", ErrRunFailed, len(res.Errors()))
	}
	a.logger.Info("🏁 Execution finished.", "duration", res.Duration)
	return nil
}

// Validate builds and orders the configured graph without running it and
// checks that every node type is registered. The execution order is written
// to the output writer.
func (a *App) Validate(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	gs, err := a.LoadGraph(ctx)
	if err != nil {
		return err
	}

	eng := a.Engine()
	plan, err := eng.Plan(gs)
	if err != nil {
		return err
	}
	if unknown := eng.UnknownTypes(gs); len(unknown) > 0 {
		return fmt.Errorf("unknown node types: [%s]. Available types: [%s]",
			strings.Join(unknown, ", "), strings.Join(a.registry.Types(), ", "))
	}

	ctxlog.FromContext(ctx).Info("✅ Graph is valid.", "nodes", plan.Graph.Len())
	for i, id := range plan.Order {
		n, _ := plan.Graph.Node(id)
		fmt.Fprintf(a.outW, "%d. %s (%s)\n", i+1, id, n.Type)
	}
	return nil
}

// Nodes writes every registered node type to the output writer, one per line.
func (a *App) Nodes() {
	for _, t := range a.registry.Types() {
		fmt.Fprintln(a.outW, t)
	}
}

// Serve runs the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	srv := server.New(a.registry, a.engineOptions(), server.Options{
		Addr:       a.config.Addr,
		ResultMode: a.config.ResultMode,
		Logger:     a.logger,
	})
	return srv.Run(ctx)
}
