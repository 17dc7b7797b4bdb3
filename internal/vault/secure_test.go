package vault

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSecure(t *testing.T) (*SecureStorage, *store.Store) {
	t.Helper()
	m, _ := newTestManager(t, KDFPBKDF2)
	st := store.New(store.StrategyMemory, store.NewMemoryBackend(), time.Minute, logging.NewNop())
	return NewSecureStorage(st, m, logging.NewNop()), st
}

func TestSecureStorage_LockedByDefault(t *testing.T) {
	s, _ := newTestSecure(t)
	ctx := context.Background()

	assert.False(t, s.IsUnlocked())
	require.ErrorIs(t, s.Set(ctx, "k", "v"), common.ErrorLocked)

	var v string
	assert.False(t, s.Get(ctx, "k", &v))

	_, err := s.Keys(ctx)
	require.ErrorIs(t, err, common.ErrorLocked)
	require.ErrorIs(t, s.Delete(ctx, "k"), common.ErrorLocked)
	require.ErrorIs(t, s.Clear(ctx), common.ErrorLocked)
}

func TestSecureStorage_RoundTrip(t *testing.T) {
	s, st := newTestSecure(t)
	ctx := context.Background()
	require.NoError(t, s.Unlock(ctx, "pw"))
	require.True(t, s.IsUnlocked())

	type token struct {
		Access string `json:"access"`
	}
	require.NoError(t, s.Set(ctx, "token", token{Access: "abc"}))
	require.NoError(t, s.Set(ctx, "note", "plain"))

	var got token
	require.True(t, s.Get(ctx, "token", &got))
	assert.Equal(t, "abc", got.Access)

	var note string
	require.True(t, s.Get(ctx, "note", &note))
	assert.Equal(t, "plain", note)

	var raw string
	require.Equal(t, store.StatusHit, st.Get(ctx, SecureKeyPrefix+"note", &raw))
	assert.NotContains(t, raw, "plain")

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"token", "note"}, keys)
}

func TestSecureStorage_LockThenFail(t *testing.T) {
	s, _ := newTestSecure(t)
	ctx := context.Background()
	require.NoError(t, s.Unlock(ctx, "pw"))
	require.NoError(t, s.Set(ctx, "k", "v"))

	s.Lock()
	assert.False(t, s.IsUnlocked())
	require.ErrorIs(t, s.Set(ctx, "k", "v2"), common.ErrorLocked)

	var v string
	assert.False(t, s.Get(ctx, "k", &v))

	require.NoError(t, s.Unlock(ctx, "pw"))
	require.True(t, s.Get(ctx, "k", &v))
	assert.Equal(t, "v", v)
}

func TestSecureStorage_WrongPassword(t *testing.T) {
	s, _ := newTestSecure(t)
	ctx := context.Background()
	require.NoError(t, s.Unlock(ctx, "pw"))
	s.Lock()

	require.ErrorIs(t, s.Unlock(ctx, "nope"), common.ErrorWrongPassword)
	assert.False(t, s.IsUnlocked())
}

func TestSecureStorage_GetMissingAndCorrupt(t *testing.T) {
	s, st := newTestSecure(t)
	ctx := context.Background()
	require.NoError(t, s.Unlock(ctx, "pw"))

	var v string
	assert.False(t, s.Get(ctx, "absent", &v))

	require.NoError(t, st.Set(ctx, SecureKeyPrefix+"bad", "not-an-envelope"))
	assert.False(t, s.Get(ctx, "bad", &v))
}

func TestSecureStorage_UseKey(t *testing.T) {
	s, _ := newTestSecure(t)
	require.ErrorIs(t, s.UseKey("nope"), common.ErrorKeyNotFound)

	id := s.keys.GenerateKey("session")
	require.NoError(t, s.UseKey(id))
	assert.True(t, s.IsUnlocked())
}

func TestSecureStorage_ClearLeavesOtherKeys(t *testing.T) {
	s, st := newTestSecure(t)
	ctx := context.Background()
	require.NoError(t, s.Unlock(ctx, "pw"))

	require.NoError(t, st.Set(ctx, "plain", 1))
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	require.NoError(t, s.Clear(ctx))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, []string{"plain"}, st.Keys(ctx))

	require.NoError(t, s.Delete(ctx, "missing"))
}
