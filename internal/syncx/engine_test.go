package syncx

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newEngine(t *testing.T, db *sql.DB, opts ...Option) *Engine {
	t.Helper()
	return New(localdb.NewSQLiteDatabase(db), metadata.NewSQLiteRepository(db), logging.NewNop(), opts...)
}

func TestTrackChange_VersionsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: t0}
	e := newEngine(t, openDB(t), WithClock(clock.Now))

	r1, err := e.TrackChange(ctx, "orders", "o1", OperationCreate, localdb.Document{"id": "o1"})
	require.NoError(t, err)
	r2, err := e.TrackChange(ctx, "orders", "o1", OperationUpdate, localdb.Document{"id": "o1", "n": 2})
	require.NoError(t, err)

	clock.t = t0.Add(-time.Hour)
	r3, err := e.TrackChange(ctx, "orders", "o2", OperationDelete, nil)
	require.NoError(t, err)

	assert.Equal(t, t0.UnixMilli(), r1.Version)
	assert.Equal(t, r1.Version+1, r2.Version)
	assert.Equal(t, r2.Version+1, r3.Version, "clock going back never lowers the version")
	assert.False(t, r1.Synced)
	assert.Nil(t, r3.Data)
}

func TestTrackChange_SeedsFromPersistedLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	clock := &fakeClock{t: t0}

	first := newEngine(t, db, WithClock(clock.Now))
	r1, err := first.TrackChange(ctx, "orders", "o1", OperationCreate, nil)
	require.NoError(t, err)

	clock.t = t0.Add(-time.Minute)
	second := newEngine(t, db, WithClock(clock.Now))
	r2, err := second.TrackChange(ctx, "orders", "o1", OperationUpdate, nil)
	require.NoError(t, err)

	assert.Greater(t, r2.Version, r1.Version)
}

func TestTrackChange_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, openDB(t))

	tests := []struct {
		name       string
		collection string
		docID      string
		op         Operation
	}{
		{"no collection", "", "o1", OperationCreate},
		{"no id", "orders", "", OperationCreate},
		{"bad operation", "orders", "o1", Operation("upsert")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.TrackChange(ctx, tt.collection, tt.docID, tt.op, nil)
			require.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestPendingChanges_OrderAndMarkSynced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: t0}
	e := newEngine(t, openDB(t), WithClock(clock.Now))

	var ids []string
	for i, c := range []string{"orders", "products", "orders"} {
		clock.t = t0.Add(time.Duration(i) * time.Second)
		r, err := e.TrackChange(ctx, c, "d", OperationUpdate, nil)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	all, err := e.GetPendingChanges(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}

	orders, err := e.GetPendingChanges(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, ids[0], orders[0].ID)
	assert.Equal(t, ids[2], orders[1].ID)

	require.NoError(t, e.MarkSynced(ctx, ids[0]))
	require.NoError(t, e.MarkSynced(ctx, ids[0]), "marking twice is a no-op")

	orders, err = e.GetPendingChanges(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, ids[2], orders[0].ID)

	err = e.MarkSynced(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkAllSynced_AndPurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{t: t0}
	e := newEngine(t, openDB(t), WithClock(clock.Now))

	for _, c := range []string{"orders", "orders", "users"} {
		_, err := e.TrackChange(ctx, c, "d", OperationCreate, nil)
		require.NoError(t, err)
	}

	n, err := e.MarkAllSynced(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := e.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)

	purged, err := e.PurgeSynced(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged, "records synced just now are kept")

	clock.t = t0.Add(2 * time.Hour)
	purged, err = e.PurgeSynced(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	pending, err := e.GetPendingChanges(ctx, "")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "unsynced records survive a purge")
}
