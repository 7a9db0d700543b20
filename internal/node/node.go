package node

import (
	"context"

	"github.com/vk/assetgraph/internal/state"
)

// Status is the execution status of a node within a run.
type Status string

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending Status = "pending"
	// Running indicates the node is currently being executed by a worker.
	Running Status = "running"
	// Done indicates the node has completed execution successfully.
	Done Status = "done"
	// Error indicates the node failed, was skipped because a dependency
	// failed, or was canceled.
	Error Status = "error"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == Done || s == Error
}

// Context is what a node sees when it is invoked.
type Context struct {
	// RunID identifies the run the invocation belongs to.
	RunID string
	// NodeID is the id of the node being invoked.
	NodeID string
	// Type is the registered type name of the node.
	Type string
	// Params are the node's parameters from the specification.
	Params Params
	// Deps holds the recorded result of each direct dependency, keyed by id.
	Deps map[string]any
	// State holds the updates of upstream nodes merged in completion order,
	// plus the error log. Values written by unrelated nodes are absent.
	State state.State
}

// Dep returns the recorded result of dependency id.
func (c *Context) Dep(id string) (any, bool) {
	v, ok := c.Deps[id]
	return v, ok
}

// Output is the successful result of an invocation.
type Output struct {
	// Value is recorded as the node's result.
	Value any
	// State is merged into the run state. It may be nil.
	State state.Update
}

// Node is a runnable unit of work.
type Node interface {
	Run(ctx context.Context, nc *Context) (*Output, error)
}

// Func adapts a plain function to the Node interface.
type Func func(ctx context.Context, nc *Context) (*Output, error)

// Run calls f.
func (f Func) Run(ctx context.Context, nc *Context) (*Output, error) {
	return f(ctx, nc)
}

// Factory builds a node from its params. It may reject invalid params.
type Factory func(params Params) (Node, error)
