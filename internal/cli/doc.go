// Package cli builds the assetgraph command tree. It merges flags, the
// environment and an optional config file into an app.Config and maps
// usage problems to exit codes.
package cli
