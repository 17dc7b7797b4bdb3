// Package localdb is the embedded document database every other component
// persists through.
//
// Documents are schemaless JSON objects grouped into named collections and
// stored in a single SQLite file. The same file carries the key/value table
// of the transactional store strategy, the blob tables and the metadata
// table; their schema is maintained by goose migrations embedded in the
// binary.
package localdb
