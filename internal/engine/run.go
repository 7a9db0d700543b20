package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/scheduler"
	"github.com/vk/assetgraph/internal/state"
)

// job is one node invocation handed to a worker.
type job struct {
	id   string
	node node.Node
	nc   *node.Context
}

// outcome is what a worker reports back for a job.
type outcome struct {
	id       string
	out      *node.Output
	err      error
	duration time.Duration
}

// run holds the bookkeeping of a single execution. Everything except the
// store is touched only by the coordinating goroutine.
type run struct {
	id       string
	plan     *Plan
	engine   *Engine
	tracker  *scheduler.Tracker
	store    *state.Store
	results  map[string]*NodeResult
	position map[string]int
	inFlight int
	canceled bool

	// updates holds the state update of each done node; completed lists
	// done nodes in completion order.
	updates   map[string]state.Update
	completed []string
}

func newRun(id string, plan *Plan, e *Engine) *run {
	r := &run{
		id:       id,
		plan:     plan,
		engine:   e,
		tracker:  scheduler.NewTracker(plan.Graph),
		store:    state.NewStore(e.opts.Schema),
		results:  make(map[string]*NodeResult, len(plan.Order)),
		position: make(map[string]int, len(plan.Order)),
		updates:  make(map[string]state.Update),
	}
	for i, id := range plan.Order {
		r.position[id] = i
		r.results[id] = &NodeResult{Status: node.Pending}
	}
	return r
}

func (r *run) execute(ctx context.Context) *Result {
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each node is dispatched at most once, so neither channel can fill up.
	jobs := make(chan job, len(r.plan.Order))
	done := make(chan outcome, len(r.plan.Order))

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", r.engine.opts.Workers)
	for i := 0; i < r.engine.opts.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.engine.worker(runCtx, jobs, done, workerID)
		}(i)
	}

	r.dispatch(runCtx, jobs, r.tracker.Ready())

	cancelCh := runCtx.Done()
	for r.inFlight > 0 {
		select {
		case o := <-done:
			r.inFlight--
			r.complete(runCtx, jobs, o)
		case <-cancelCh:
			cancelCh = nil
			r.cancelPending(runCtx)
		}
	}
	close(jobs)
	wg.Wait()

	// Every node is terminal here under correct scheduling; anything still
	// pending would otherwise be missing from the result.
	for _, id := range r.plan.Order {
		if r.results[id].Status == node.Pending {
			r.fail(runCtx, id, KindInvariant, "node was never scheduled")
		}
	}

	nodes := make(map[string]NodeResult, len(r.results))
	for id, res := range r.results {
		nodes[id] = *res
	}
	return &Result{
		RunID: r.id,
		Order: slices.Clone(r.plan.Order),
		Nodes: nodes,
		State: r.store.Snapshot(),
	}
}

// dispatch starts every pending node in ids, in execution order.
func (r *run) dispatch(ctx context.Context, jobs chan<- job, ids []string) {
	ids = slices.Clone(ids)
	sort.Slice(ids, func(i, j int) bool { return r.position[ids[i]] < r.position[ids[j]] })

	if ctx.Err() != nil && !r.canceled {
		r.cancelPending(ctx)
	}
	for _, id := range ids {
		if r.results[id].Status != node.Pending {
			continue
		}
		r.start(ctx, jobs, id)
	}
}

// start resolves id, builds its context and hands it to a worker. A node
// whose type does not resolve fails without ever running.
func (r *run) start(ctx context.Context, jobs chan<- job, id string) {
	ns, _ := r.plan.Graph.Node(id)
	factory, err := r.engine.registry.Resolve(ns.Type)
	if err != nil {
		r.fail(ctx, id, KindUnknownType, fmt.Sprintf("failed to load node type: %v", err))
		return
	}

	r.transition(ctx, id, node.Running)
	n, err := factory(node.Params(ns.Params))
	if err != nil {
		r.fail(ctx, id, KindExecution, fmt.Sprintf("failed to build node: %v", err))
		return
	}
	nc, err := r.nodeContext(id, ns.Type, ns.Params)
	if err != nil {
		r.fail(ctx, id, KindInvariant, err.Error())
		return
	}

	r.inFlight++
	jobs <- job{id: id, node: n, nc: nc}
}

// nodeContext collects the results of id's dependencies. A dependency that
// is not done means the scheduler released id too early.
func (r *run) nodeContext(id, typeName string, params map[string]any) (*node.Context, error) {
	deps := make(map[string]any)
	for _, dep := range r.plan.Graph.DependenciesOf(id) {
		res := r.results[dep]
		if res.Status != node.Done {
			return nil, fmt.Errorf("dependency '%s' did not complete successfully (status: %s)", dep, res.Status)
		}
		deps[dep] = res.Result
	}

	upstream := make(map[string]bool)
	for _, up := range r.tracker.Upstream(id) {
		upstream[up] = true
	}
	var updates []state.Update
	for _, done := range r.completed {
		if upstream[done] {
			updates = append(updates, r.updates[done])
		}
	}
	view, err := r.store.Schema().View(r.store.Snapshot(), updates...)
	if err != nil {
		return nil, fmt.Errorf("building state view: %w", err)
	}

	return &node.Context{
		RunID:  r.id,
		NodeID: id,
		Type:   typeName,
		Params: node.Params(params),
		Deps:   deps,
		State:  view,
	}, nil
}

// complete records a finished invocation and releases its dependents.
func (r *run) complete(ctx context.Context, jobs chan<- job, o outcome) {
	logger := ctxlog.FromContext(ctx).With("nodeID", o.id, "duration", o.duration)

	if ctx.Err() != nil && !r.canceled {
		r.cancelPending(ctx)
	}
	if o.err != nil {
		kind := KindExecution
		msg := fmt.Sprintf("execution failed: %v", o.err)
		if ctx.Err() != nil && isContextErr(o.err) {
			kind = KindCanceled
			msg = fmt.Sprintf("canceled: %v", o.err)
		}
		r.fail(ctx, o.id, kind, msg)
		return
	}

	out := o.out
	if out == nil {
		out = &node.Output{}
	}
	if _, ok := out.State[state.ErrorsField]; ok {
		r.fail(ctx, o.id, KindExecution, fmt.Sprintf("execution failed: nodes must not write the %q field", state.ErrorsField))
		return
	}
	if err := r.store.Merge(out.State); err != nil {
		r.fail(ctx, o.id, KindExecution, fmt.Sprintf("execution failed: merging state: %v", err))
		return
	}

	r.updates[o.id] = out.State
	r.completed = append(r.completed, o.id)
	r.results[o.id].Result = out.Value
	r.transition(ctx, o.id, node.Done)
	logger.Info("✅ Node done.")

	r.dispatch(ctx, jobs, r.tracker.Release(o.id))
}

// fail moves id to error, records one error log entry and propagates the
// failure to every pending transitive dependent.
func (r *run) fail(ctx context.Context, id string, kind ErrorKind, msg string) {
	r.setError(ctx, id, kind, msg)

	for _, dep := range r.tracker.Downstream(id) {
		if r.results[dep].Status != node.Pending {
			continue
		}
		r.setError(ctx, dep, KindDependency, fmt.Sprintf("skipped due to upstream failure of '%s'", id))
	}
}

func (r *run) setError(ctx context.Context, id string, kind ErrorKind, msg string) {
	res := r.results[id]
	if res.Status.Terminal() {
		return
	}
	res.Error = msg
	res.Kind = kind
	r.store.AppendError(state.ErrorEntry{NodeID: id, Kind: string(kind), Message: msg})
	r.transition(ctx, id, node.Error)

	logger := ctxlog.FromContext(ctx).With("nodeID", id, "kind", kind)
	if kind == KindDependency || kind == KindCanceled {
		logger.Warn("Node skipped.", "reason", msg)
		return
	}
	logger.Error("Node failed.", "error", msg)
}

// cancelPending fails every node that has not started yet.
func (r *run) cancelPending(ctx context.Context) {
	r.canceled = true
	ctxlog.FromContext(ctx).Warn("Run canceled, skipping pending nodes.", "cause", context.Cause(ctx))
	for _, id := range r.plan.Order {
		if r.results[id].Status == node.Pending {
			r.setError(ctx, id, KindCanceled, fmt.Sprintf("run canceled before start: %v", context.Cause(ctx)))
		}
	}
}

func (r *run) transition(ctx context.Context, id string, to node.Status) {
	res := r.results[id]
	ctxlog.FromContext(ctx).Debug("Node status changed.", "nodeID", id, "from", res.Status, "to", to)
	res.Status = to

	if h := r.engine.opts.OnEvent; h != nil {
		h(Event{
			RunID:  r.id,
			NodeID: id,
			Status: to,
			Kind:   res.Kind,
			Error:  res.Error,
			Time:   time.Now(),
		})
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
