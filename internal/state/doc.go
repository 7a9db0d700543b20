// Package state holds the run-wide shared state of a graph execution.
//
// A State is an immutable field → value mapping. Updates are applied with a
// Schema, which assigns each field a merge Policy: Overwrite replaces the
// previous value and Append concatenates onto it. Exactly one field, the
// error log, is declared Append. A strict Schema rejects fields it does not
// declare; a lenient one treats them as Overwrite.
//
// Store serializes writers so that concurrently running nodes never race on
// the state; readers take snapshots.
package state
