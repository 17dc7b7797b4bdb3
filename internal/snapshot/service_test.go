package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/blobstore"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db    *localdb.SQLiteDatabase
	blobs *blobstore.Store
	svc   *Service
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	sqlDB, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := localdb.NewSQLiteDatabase(sqlDB)
	blobs := blobstore.New(sqlDB, 0, blobstore.Processor{}, logging.NewNop())
	opts = append([]Option{WithClock(func() time.Time { return exportTime })}, opts...)
	return fixture{db: db, blobs: blobs, svc: New(db, blobs, logging.NewNop(), opts...)}
}

func (f fixture) put(t *testing.T, collection string, doc localdb.Document) {
	t.Helper()
	_, err := f.db.Put(context.Background(), collection, doc)
	require.NoError(t, err)
}

func TestExport_FormatAndInternalCollections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.put(t, "orders", localdb.Document{"id": "o1", "total": 10.0})
	f.put(t, "orders", localdb.Document{"id": "o2", "total": 20.0})
	f.put(t, "products", localdb.Document{"id": "p1", "name": "lamp"})
	f.put(t, "_sync_records", localdb.Document{"id": "r1"})

	snap, err := f.svc.Export(ctx, ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, snap.Metadata.Version)
	assert.Equal(t, exportTime, snap.Metadata.ExportedAt)
	assert.Equal(t, []string{"orders", "products"}, snap.Metadata.Stores)
	assert.Equal(t, 3, snap.Metadata.TotalRecords)
	assert.False(t, snap.Metadata.IncludesBlobs)
	assert.Len(t, snap.Data["orders"], 2)
	assert.Nil(t, snap.Blobs)

	all, err := f.svc.Export(ctx, ExportOptions{IncludeInternal: true})
	require.NoError(t, err)
	assert.Contains(t, all.Metadata.Stores, "_sync_records")

	some, err := f.svc.Export(ctx, ExportOptions{Collections: []string{"products", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"missing", "products"}, some.Metadata.Stores)
	assert.Empty(t, some.Data["missing"])
	assert.Equal(t, 1, some.Metadata.TotalRecords)
}

func TestExportImport_RoundTripWithBlobs(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)

	src.put(t, "orders", localdb.Document{"id": "o1", "total": 10.0})
	m, err := src.blobs.Store(ctx, []byte("attachment"), "a.txt", blobstore.Options{})
	require.NoError(t, err)

	snap, err := src.svc.Export(ctx, ExportOptions{IncludeBlobs: true})
	require.NoError(t, err)
	require.True(t, snap.Metadata.IncludesBlobs)
	require.Contains(t, snap.Blobs, m.ID)

	path := filepath.Join(t.TempDir(), "backup.json.gz")
	require.NoError(t, WriteFile(path, snap))
	loaded, err := ReadFile(path)
	require.NoError(t, err)

	var written []string
	dst := newFixture(t, WithWriteHook(func(_ context.Context, c string, doc localdb.Document) {
		written = append(written, c+"/"+doc.ID())
	}))
	res, err := dst.svc.Import(ctx, loaded, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Blobs)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"orders/o1"}, written)

	doc, err := dst.db.Get(ctx, "orders", "o1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, doc["total"])

	b, err := dst.blobs.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("attachment"), b.Data)
	assert.Equal(t, "a.txt", b.Filename)
}

func TestImport_Modes(t *testing.T) {
	ctx := context.Background()

	incoming := &Snapshot{
		Metadata: Metadata{Version: FormatVersion},
		Data: map[string][]localdb.Document{
			"orders": {{"id": "o1", "status": "shipped"}, {"id": "o2", "status": "new"}},
		},
	}

	cases := []struct {
		mode     Mode
		imported int
		skipped  int
		want     localdb.Document
	}{
		{ModeSkip, 1, 1, localdb.Document{"status": "pending", "note": "keep"}},
		{ModeOverwrite, 2, 0, localdb.Document{"status": "shipped"}},
		{ModeMerge, 2, 0, localdb.Document{"status": "shipped", "note": "keep"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			f := newFixture(t)
			f.put(t, "orders", localdb.Document{"id": "o1", "status": "pending", "note": "keep"})

			res, err := f.svc.Import(ctx, incoming, ImportOptions{Mode: tc.mode})
			require.NoError(t, err)
			assert.Equal(t, tc.imported, res.Imported)
			assert.Equal(t, tc.skipped, res.Skipped)

			doc, err := f.db.Get(ctx, "orders", "o1")
			require.NoError(t, err)
			for k, v := range tc.want {
				assert.Equal(t, v, doc[k], k)
			}
			if tc.mode == ModeOverwrite {
				assert.NotContains(t, doc, "note")
			}

			_, err = f.db.Get(ctx, "orders", "o2")
			require.NoError(t, err)
		})
	}
}

func TestImport_CollectsItemErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap := &Snapshot{
		Data: map[string][]localdb.Document{
			"":       {{"id": "x"}},
			"orders": {nil, {"id": "ok"}},
		},
		Blobs: map[string]BlobEntry{
			"b1": {Data: "%%%"},
		},
	}

	res, err := f.svc.Import(ctx, snap, ImportOptions{Mode: ModeOverwrite})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 3)
	for _, e := range res.Errors {
		assert.ErrorIs(t, e, common.ErrorValidation)
	}
	assert.Equal(t, BlobCollection, res.Errors[2].Collection)

	_, err = f.db.Get(ctx, "orders", "ok")
	require.NoError(t, err)
}

func TestImport_RejectsUnusableSnapshot(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Import(context.Background(), nil, ImportOptions{})
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Import(context.Background(), &Snapshot{Metadata: Metadata{Version: "99"}}, ImportOptions{})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSkip, m)

	m, err = ParseMode("merge")
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, m)

	_, err = ParseMode("replace")
	require.Error(t, err)
}
