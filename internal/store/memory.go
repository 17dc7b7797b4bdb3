package store

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps values in process memory. Nothing expires.
type MemoryBackend struct {
	c *cache.Cache
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{c: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return slices.Clone(v.([]byte)), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.c.Set(key, slices.Clone(value), cache.NoExpiration)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.c.Flush()
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	items := m.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryBackend) Close() error {
	m.c.Flush()
	return nil
}
