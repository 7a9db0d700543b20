// Package server exposes the engine over HTTP: graph execution and
// validation endpoints, a registry listing, a health check, and a WebSocket
// stream of node status updates.
package server
