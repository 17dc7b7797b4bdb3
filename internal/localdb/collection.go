package localdb

import (
	"context"
	"fmt"
)

// Collection is a typed view over one collection. T must encode to a JSON
// object; its id is taken from the id argument rather than from T.
type Collection[T any] struct {
	db   Database
	name string
}

func NewCollection[T any](db Database, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.db.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}

	var v T
	if err := doc.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", c.name, id, err)
	}
	return &v, nil
}

func (c *Collection[T]) Put(ctx context.Context, id string, v *T) error {
	doc, err := FromValue(v)
	if err != nil {
		return err
	}
	doc[FieldID] = id

	_, err = c.db.Put(ctx, c.name, doc)
	return err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.db.Delete(ctx, c.name, id)
}

func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	docs, err := c.db.GetAll(ctx, c.name)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", c.name, doc.ID(), err)
		}
		result = append(result, v)
	}
	return result, nil
}

func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.db.Clear(ctx, c.name)
}

func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	return c.db.Count(ctx, c.name)
}
