// Package snapshot exports the local database (and optionally every blob)
// to one portable document and imports it back.
//
// Snapshots are JSON; files whose name ends in .gz are gzip-compressed.
// S3Backup keeps snapshots in an S3-compatible bucket.
package snapshot
