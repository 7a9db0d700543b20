// Package app contains the core application logic. It defines the main App
// struct, its configuration, module wiring, and the run, validate and serve
// lifecycles, decoupled from any specific entrypoint like the CLI.
package app
