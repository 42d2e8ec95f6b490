// Package orchestrator owns the client-side view of the remote server's
// model table. It is structured into small files by concern:
//
//   - orchestrator.go: core Orchestrator type, constructor, lifecycle,
//     merged snapshot.
//   - commands.go: optimistic command dispatch (download/load/unload) and
//     model selection.
//   - poll.go: the authoritative poll loop, overlay reconciliation, and
//     the progress tick loop.
//   - events.go: EventPublisher and the default noop implementation.
//   - eventpub_memory.go: in-memory publisher for tests.
//   - errors.go: error types and helpers.
//
// The server offers no push channel, so the orchestrator keeps two state
// layers: the authoritative table from the last successful poll, and a
// transient per-variant overlay installed when a command is dispatched.
// Merging is deterministic: a poll result always supersedes the overlay's
// status guess, and the overlay only contributes the synthetic progress
// value while the server still reports a transitional state.
package orchestrator
