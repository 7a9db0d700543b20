package engine

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/dag"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/scheduler"
	"github.com/vk/assetgraph/internal/spec"
	"github.com/vk/assetgraph/internal/state"
)

// DefaultWorkers is the worker pool size used when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures an Engine.
type Options struct {
	// Workers bounds how many nodes run at once.
	Workers int
	// NodeTimeout, when positive, limits every node invocation.
	NodeTimeout time.Duration
	// Schema decides how node output merges into the run state. A lenient
	// schema is used when nil.
	Schema *state.Schema
	// OnEvent, when set, receives every node status transition.
	OnEvent EventHandler
}

// Engine executes graphs against a registry of node types. It holds no
// per-run state and may run several graphs concurrently.
type Engine struct {
	registry *registry.Registry
	opts     Options
}

// New creates an Engine resolving node types from reg.
func New(reg *registry.Registry, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.Schema == nil {
		opts.Schema = state.Lenient()
	}
	return &Engine{registry: reg, opts: opts}
}

// Plan is a validated graph together with its execution order.
type Plan struct {
	Graph *dag.Graph
	Order []string
}

// Plan builds and orders s without running anything. It fails with a
// *dag.ValidationError or a *scheduler.CycleError.
func (e *Engine) Plan(s *spec.GraphSpec) (*Plan, error) {
	g, err := dag.Build(s)
	if err != nil {
		return nil, err
	}
	order, err := scheduler.Order(g)
	if err != nil {
		return nil, err
	}
	return &Plan{Graph: g, Order: order}, nil
}

// Run executes s and returns a terminal result for every declared node. A
// graph that fails validation or ordering is reported through Result.Err
// and no node is invoked. Node failures never abort the run; they are
// recorded on the node and in the error log.
func (e *Engine) Run(ctx context.Context, s *spec.GraphSpec) *Result {
	started := time.Now()
	runID := uuid.NewString()
	ctx = ctxlog.With(ctx, "runID", runID)
	logger := ctxlog.FromContext(ctx)

	plan, err := e.Plan(s)
	if err != nil {
		logger.Error("Graph rejected.", "error", err)
		res := e.rejected(runID, s, err)
		res.Duration = time.Since(started)
		return res
	}

	logger.Info("▶️ Starting run.", "nodes", plan.Graph.Len(), "workers", e.opts.Workers)
	r := newRun(runID, plan, e)
	res := r.execute(ctx)
	res.Duration = time.Since(started)

	logger.Info("🏁 Run finished.", "duration", res.Duration, "errors", len(res.Errors()))
	return res
}

// rejected builds the result of a run whose graph could not be built or
// ordered: every declared node ends in error and no node was invoked.
func (e *Engine) rejected(runID string, s *spec.GraphSpec, err error) *Result {
	res := &Result{RunID: runID, Err: err}
	kind := res.Kind()

	store := state.NewStore(e.opts.Schema)
	store.AppendError(state.ErrorEntry{NodeID: GraphNodeID, Kind: string(kind), Message: err.Error()})

	nodes := make(map[string]NodeResult)
	if s != nil {
		for _, n := range s.Nodes {
			nodes[n.ID] = NodeResult{Status: node.Error, Error: err.Error(), Kind: kind}
		}
	}
	res.Nodes = nodes
	res.State = store.Snapshot()
	return res
}

// UnknownTypes returns the distinct node types used by s that the registry
// cannot resolve, sorted.
func (e *Engine) UnknownTypes(s *spec.GraphSpec) []string {
	seen := make(map[string]bool)
	var unknown []string
	for _, n := range s.Nodes {
		if seen[n.Type] {
			continue
		}
		seen[n.Type] = true
		if _, err := e.registry.Resolve(n.Type); err != nil {
			unknown = append(unknown, n.Type)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// Registry returns the registry node types are resolved from.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}
