// Package spec defines the inbound graph specification (nodes, edges and
// their parameters) and loads it from JSON, YAML or HCL documents. A
// directory may be given instead of a file, in which case every
// specification file beneath it is merged into a single graph.
package spec
