// Package metadata persists small named values (key-derivation salts,
// password verifiers, sync bookkeeping) in the metadata table of the local
// database.
package metadata
