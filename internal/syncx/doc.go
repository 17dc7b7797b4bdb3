// Package syncx records local mutations as an append-only change log and
// reconciles collections against remote snapshots.
//
// The engine performs no network I/O. Callers fetch remote documents, hand
// them to Engine.Sync, push Result.Push and the pending change log upstream,
// and then mark the pushed records synced.
package syncx
