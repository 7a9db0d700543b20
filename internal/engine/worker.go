package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/node"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Engine) worker(ctx context.Context, jobs <-chan job, done chan<- outcome, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for j := range jobs {
		nodeCtx := ctxlog.With(ctx, "workerID", workerID, "nodeID", j.id)
		ctxlog.FromContext(nodeCtx).Debug("Worker picked up node for execution.", "type", j.nc.Type)

		// A job still queued when the run is canceled is never invoked.
		if err := ctx.Err(); err != nil {
			if cause := context.Cause(ctx); cause != nil && cause != err {
				err = fmt.Errorf("%w (%w)", cause, err)
			}
			ctxlog.FromContext(nodeCtx).Debug("Run canceled, dropping queued node.")
			done <- outcome{id: j.id, err: err}
			continue
		}

		started := time.Now()
		out, err := e.invoke(nodeCtx, j)
		done <- outcome{id: j.id, out: out, err: err, duration: time.Since(started)}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// invoke runs one node, bounding it by the node timeout and turning a panic
// into an error.
func (e *Engine) invoke(ctx context.Context, j job) (out *node.Output, err error) {
	if e.opts.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.opts.NodeTimeout,
			fmt.Errorf("node timed out after %s", e.opts.NodeTimeout))
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			ctxlog.FromContext(ctx).Error("Node panicked.", "panic", p)
			out, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	ctxlog.FromContext(ctx).Info("▶️ Running node.")
	out, err = j.node.Run(ctx, j.nc)
	if err != nil && isContextErr(err) {
		if cause := context.Cause(ctx); cause != nil && cause != err {
			err = fmt.Errorf("%w (%w)", cause, err)
		}
	}
	return out, err
}
