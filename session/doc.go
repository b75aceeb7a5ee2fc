// Package session maps external conversation keys (chat threads, webhook
// deliveries, REPL runs) to Copilot CLI session IDs.
//
// Available registries:
//   - [MemoryStore] keeps entries in memory and evicts idle ones after a TTL.
//   - [FileStore] persists entries as JSON files on disk so that sessions
//     can be resumed after a restart.
//
// Both implement [Registry] and are safe for concurrent use.
package session
