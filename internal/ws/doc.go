// Package ws implements the real-time session hub: long-lived WebSocket
// sessions, liveness tracking, message validation, deduplication and
// best-effort fan-out.
//
// The package implements:
//   - Registry: the server-side map of live sessions and their transports
//   - Monitor: periodic sweep that probes idle sessions and evicts dead ones
//   - DedupFilter: sliding-window suppression of repeated logical messages
//   - Router: delivery to one or all sessions with per-session failure isolation
//   - Handler: transport accept, read/write pumps, collaborator dispatch
//   - Service: wires the above for the process lifetime
//
// Business logic (AI completion, calendar booking, outbound providers) sits
// behind the Collaborator interface; the hub validates, deduplicates and
// routes, nothing more.
package ws
