// Package registry maps node type names to the factories that build them.
//
// Node implementations live in Go packages under modules/. Each package
// exposes a Module whose Register method adds its types to a Registry during
// application start-up, before any run begins. After that the registry is
// only read, so a single instance can be shared by concurrent runs.
//
// Type names are global: registering the same name twice is an error no
// matter which module does it.
package registry
