// Package engine wires every component of the local data engine into one
// explicitly constructed instance.
//
// Document writes go through Engine so the change log and the search index
// follow the local database: the document is written first, then tracked
// when its collection is synced, then indexed when its collection is
// searchable.
package engine
