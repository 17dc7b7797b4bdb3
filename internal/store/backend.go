package store

import (
	"context"
)

// Backend is a durable (or memory) byte store. Get returns
// common.ErrorNotFound for absent keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// BatchSetter is implemented by backends able to write several keys
// atomically.
type BatchSetter interface {
	SetMany(ctx context.Context, values map[string][]byte) error
}
