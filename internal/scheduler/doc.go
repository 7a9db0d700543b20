// Package scheduler decides execution order for a graph.
//
// Order produces a deterministic topological order with Kahn's algorithm and,
// when the graph is not acyclic, reports the nodes involved in a cycle. A
// Tracker follows the same in-degree bookkeeping incrementally so the engine
// can release dependents as their dependencies finish.
package scheduler
