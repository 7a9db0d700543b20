package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/registry"
	"github.com/vk/assetgraph/internal/state"
)

// Scripted node types registered by ScriptModule.
const (
	// TypeEmit returns params["value"] and merges params["state"] (a map)
	// into the run state.
	TypeEmit = "Emit"
	// TypeFail returns an error carrying params["message"].
	TypeFail = "Fail"
	// TypePanic panics with params["message"].
	TypePanic = "Panic"
	// TypeSleep waits params["ms"] milliseconds or until its context ends,
	// then behaves like TypeEmit.
	TypeSleep = "Sleep"
)

// Invocation is what a scripted node observed when it ran.
type Invocation struct {
	NodeID string
	Deps   map[string]any
	State  state.State
	ExecutionRecord
}

// ScriptModule registers node types whose behavior is driven entirely by
// params, and records every invocation for later assertions.
type ScriptModule struct {
	mu    sync.Mutex
	calls []Invocation
}

// NewScriptModule creates an empty ScriptModule.
func NewScriptModule() *ScriptModule {
	return &ScriptModule{}
}

// Register implements registry.Module.
func (m *ScriptModule) Register(r *registry.Registry) error {
	for name, run := range map[string]func(context.Context, *node.Context) (*node.Output, error){
		TypeEmit:  emit,
		TypeFail:  fail,
		TypePanic: panicking,
		TypeSleep: sleep,
	} {
		err := r.Register(name, func(node.Params) (node.Node, error) {
			return node.Func(func(ctx context.Context, nc *node.Context) (*node.Output, error) {
				rec := ExecutionRecord{Start: time.Now()}
				out, err := run(ctx, nc)
				rec.End = time.Now()
				m.record(Invocation{NodeID: nc.NodeID, Deps: nc.Deps, State: nc.State, ExecutionRecord: rec})
				return out, err
			}), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *ScriptModule) record(inv Invocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, inv)
}

// Calls returns every recorded invocation in completion order.
func (m *ScriptModule) Calls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invocation(nil), m.calls...)
}

// Call returns the invocation of nodeID.
func (m *ScriptModule) Call(nodeID string) (Invocation, bool) {
	for _, c := range m.Calls() {
		if c.NodeID == nodeID {
			return c, true
		}
	}
	return Invocation{}, false
}

// Invoked returns the ids of every invoked node in completion order.
func (m *ScriptModule) Invoked() []string {
	var ids []string
	for _, c := range m.Calls() {
		ids = append(ids, c.NodeID)
	}
	return ids
}

func emit(_ context.Context, nc *node.Context) (*node.Output, error) {
	out := &node.Output{Value: nc.Params["value"]}
	if raw, ok := nc.Params["state"].(map[string]any); ok {
		out.State = state.Update(raw)
	}
	return out, nil
}

func fail(_ context.Context, nc *node.Context) (*node.Output, error) {
	msg, _ := nc.Params.String("message", "scripted failure")
	return nil, errors.New(msg)
}

func panicking(_ context.Context, nc *node.Context) (*node.Output, error) {
	msg, _ := nc.Params.String("message", "scripted panic")
	panic(msg)
}

func sleep(ctx context.Context, nc *node.Context) (*node.Output, error) {
	ms, err := nc.Params.Int("ms", 10)
	if err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return emit(ctx, nc)
	case <-ctx.Done():
		return nil, fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}
