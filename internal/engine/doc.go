// Package engine runs a workflow graph: it builds and orders the graph,
// invokes each node on a bounded worker pool as soon as its dependencies are
// done, merges node output into the shared run state, and contains failures
// to the failing node and its dependents.
package engine
