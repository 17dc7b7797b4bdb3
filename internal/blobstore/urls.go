package blobstore

import (
	"sync"

	"github.com/google/uuid"
)

const urlScheme = "blob:gophstore/"

type urlKey struct {
	id        string
	thumbnail bool
}

// URLCache memoizes one handle per (blob, variant). Handles are plain
// strings resolvable through the cache until released.
type URLCache struct {
	mu       sync.Mutex
	byKey    map[urlKey]string
	byHandle map[string]urlKey
}

func NewURLCache() *URLCache {
	return &URLCache{
		byKey:    make(map[urlKey]string),
		byHandle: make(map[string]urlKey),
	}
}

// Acquire returns the handle of the variant, allocating it on first use.
func (c *URLCache) Acquire(id string, thumbnail bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := urlKey{id: id, thumbnail: thumbnail}
	if h, ok := c.byKey[k]; ok {
		return h
	}

	h := urlScheme + uuid.NewString()
	c.byKey[k] = h
	c.byHandle[h] = k
	return h
}

// Resolve maps a live handle back to its blob and variant.
func (c *URLCache) Resolve(handle string) (id string, thumbnail bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, ok := c.byHandle[handle]
	return k.id, k.thumbnail, ok
}

// Revoke releases both variants of a blob and returns how many handles
// were live.
func (c *URLCache) Revoke(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, thumb := range []bool{false, true} {
		k := urlKey{id: id, thumbnail: thumb}
		if h, ok := c.byKey[k]; ok {
			delete(c.byKey, k)
			delete(c.byHandle, h)
			n++
		}
	}
	return n
}

// RevokeAll releases every handle.
func (c *URLCache) RevokeAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.byKey)
	clear(c.byKey)
	clear(c.byHandle)
	return n
}

func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
