package localdb

import "context"

// Database is the document-level contract of the local database.
type Database interface {
	// Get returns the document or common.ErrorNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Put inserts or replaces a document and returns what was stored.
	Put(ctx context.Context, collection string, doc Document) (Document, error)
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Clear(ctx context.Context, collection string) error
	Count(ctx context.Context, collection string) (int, error)
	Collections(ctx context.Context) ([]string, error)
}
