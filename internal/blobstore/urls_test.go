package blobstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLCache_MemoizesPerVariant(t *testing.T) {
	t.Parallel()

	c := NewURLCache()
	a := c.Acquire("id1", false)
	assert.Equal(t, a, c.Acquire("id1", false))
	b := c.Acquire("id1", true)
	assert.NotEqual(t, a, b)

	id, thumb, ok := c.Resolve(b)
	assert.True(t, ok)
	assert.Equal(t, "id1", id)
	assert.True(t, thumb)

	assert.Equal(t, 2, c.Revoke("id1"))
	_, _, ok = c.Resolve(a)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestURLCache_ConcurrentAcquire(t *testing.T) {
	t.Parallel()

	c := NewURLCache()
	var wg sync.WaitGroup
	handles := make([]string, 16)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i] = c.Acquire("shared", false)
		}()
	}
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 1, c.RevokeAll())
}
