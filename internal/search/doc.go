// Package search is a small local full-text index over documents of the
// local database.
//
// Ranking is an approximate token-overlap score: the share of query tokens
// a document contains (weight 0.7) plus the share of the document's tokens
// the query matched (weight 0.3), scaled to 0..100. There is no stemming,
// no term frequency and no inverted index; every query scans the entries
// of the requested collections. This is enough for the few thousand
// records a client keeps offline and is not a BM25 engine.
package search
