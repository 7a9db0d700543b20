package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/assetgraph/internal/node"
	"github.com/vk/assetgraph/internal/scheduler"
	"github.com/vk/assetgraph/internal/state"
)

// ErrorKind classifies why a node or run failed.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindCycle       ErrorKind = "cycle"
	KindUnknownType ErrorKind = "unknown_type"
	KindExecution   ErrorKind = "execution"
	KindDependency  ErrorKind = "dependency"
	KindInvariant   ErrorKind = "invariant"
	KindCanceled    ErrorKind = "canceled"
)

// GraphNodeID attributes error log entries that concern the whole graph
// rather than a single node.
const GraphNodeID = "graph"

// NodeResult is the outcome of one node.
type NodeResult struct {
	Status node.Status `json:"status"`
	Result any         `json:"result"`
	Error  string      `json:"error,omitempty"`
	Kind   ErrorKind   `json:"kind,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	// RunID identifies the run.
	RunID string
	// Order is the execution order. It is empty when the graph was invalid.
	Order []string
	// Nodes holds a terminal result for every declared node.
	Nodes map[string]NodeResult
	// State is the final run state.
	State state.State
	// Err is set when the graph itself was rejected and no node ran.
	Err error
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Errors returns the error log of the run.
func (r *Result) Errors() []state.ErrorEntry {
	return r.State.Errors()
}

// Failed reports whether the graph was rejected or any node failed.
func (r *Result) Failed() bool {
	return r.Err != nil || len(r.State.Errors()) > 0
}

// Event reports a node status transition.
type Event struct {
	RunID  string      `json:"runId"`
	NodeID string      `json:"nodeId"`
	Status node.Status `json:"status"`
	Kind   ErrorKind   `json:"kind,omitempty"`
	Error  string      `json:"error,omitempty"`
	Time   time.Time   `json:"time"`
}

// EventHandler receives status transitions. It is called from the run's
// coordinating goroutine and must not block.
type EventHandler func(Event)

// ResultMode selects what a caller receives for a finished run.
type ResultMode string

const (
	// ResultModeState returns the final run state including the error log.
	ResultModeState ResultMode = "state"
	// ResultModeNodes returns the per-node results.
	ResultModeNodes ResultMode = "nodes"
)

// ParseResultMode validates s. The empty string selects ResultModeState.
func ParseResultMode(s string) (ResultMode, error) {
	switch ResultMode(s) {
	case "", ResultModeState:
		return ResultModeState, nil
	case ResultModeNodes:
		return ResultModeNodes, nil
	default:
		return "", fmt.Errorf("invalid result mode %q: must be 'state' or 'nodes'", s)
	}
}

// Payload returns the outward view of r for mode.
func (r *Result) Payload(mode ResultMode) any {
	if mode == ResultModeNodes {
		return r.Nodes
	}
	return r.State
}

// Kind reports the kind of the graph-level failure, or "" when the graph
// was accepted.
func (r *Result) Kind() ErrorKind {
	return GraphErrorKind(r.Err)
}

// GraphErrorKind classifies an error returned by Engine.Plan.
func GraphErrorKind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var cycleErr *scheduler.CycleError
	if errors.As(err, &cycleErr) {
		return KindCycle
	}
	return KindValidation
}
