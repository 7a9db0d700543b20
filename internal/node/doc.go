// Package node defines the contract every node type implements: a Node is
// built by a Factory from its params and, when invoked, reads a Context and
// returns an Output holding the value to record and the state update to
// merge.
package node
