// Package blobstore keeps binary payloads (mostly images) in the local
// database next to their metadata and an optional thumbnail.
//
// Bytes, metadata and thumbnail of one blob are written and deleted in a
// single SQLite transaction, so a crash never leaves metadata without its
// bytes. Images can be re-encoded smaller on the way in; the pipeline never
// fails a store, it falls back to the original bytes instead.
//
// GetURL hands out process-local handles (blob:gophstore/<uuid>) that stay
// valid until RevokeURL or RevokeAllURLs releases them.
package blobstore
