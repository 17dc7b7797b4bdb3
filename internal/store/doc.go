// Package store is the unified key/value façade of the engine.
//
// A Store runs on one of four strategies. memory keeps values in process
// memory, flat-durable in a LevelDB directory, transactional-durable in the
// kv table of the local SQLite database, and multi puts a TTL-bound memory
// tier in front of the flat-durable backend. Values are JSON encoded.
//
// Reads fail soft: Get reports a Status instead of an error, and
// StatusUnavailable means "unknown", never "absent". Writes return their
// error after logging it so that each call site decides whether to ignore it.
package store
