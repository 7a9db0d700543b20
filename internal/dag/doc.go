// Package dag is the graph model of the engine. It turns a specification
// into an immutable directed graph: the node set in declaration order,
// forward and reverse adjacency, and per-node in-degree.
//
// Construction validates the specification (non-empty node set, unique ids,
// edges that only reference declared nodes). Acyclicity is not checked here;
// ordering and cycle detection belong to the scheduler.
//
// A built Graph is never mutated and is safe for concurrent reads.
package dag
