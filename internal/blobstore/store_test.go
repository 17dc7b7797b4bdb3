package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)
	payload := []byte("plain text attachment\n")

	m, err := s.Store(ctx, payload, "notes.txt", Options{Compress: true, GenerateThumbnail: true})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "text/plain", m.MimeType)
	assert.Equal(t, int64(len(payload)), m.Size)
	assert.Nil(t, m.CompressedSize)
	assert.False(t, m.HasThumbnail)

	b, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, payload, b.Data)
	assert.Nil(t, b.Thumbnail)
	assert.Equal(t, "notes.txt", b.Filename)
}

func TestStore_RejectsOversizedWithoutWriting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 8)
	assert.Equal(t, int64(8), s.MaxSize())

	_, err := s.Store(ctx, []byte("123456789"), "big.bin", Options{})
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.Store(ctx, nil, "empty.bin", Options{})
	require.ErrorIs(t, err, common.ErrorValidation)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_DeleteRemovesEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)

	m, err := s.Store(ctx, encodePNG(t, noisyImage(300, 150)), "pic.png", Options{GenerateThumbnail: true})
	require.NoError(t, err)
	_, err = s.GetURL(ctx, m.ID, true)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, m.ID))

	_, err = s.Get(ctx, m.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.GetMetadata(ctx, m.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, s.urls.Len())

	assert.ErrorIs(t, s.Delete(ctx, m.ID), common.ErrorNotFound)
}

func TestStore_CompressesLargeJPEG(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)
	original := encodeJPEG(t, noisyImage(2400, 120), 100)

	m, err := s.Store(ctx, original, "wide.jpg", Options{Compress: true})
	require.NoError(t, err)
	require.NotNil(t, m.CompressedSize)
	assert.Less(t, *m.CompressedSize, m.Size)
	assert.Equal(t, "image/jpeg", m.MimeType)

	b, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	w, h := decodeSize(t, b.Data)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 96, h)
}

func TestStore_BrokenImageFallsBackSilently(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)

	broken := append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not a png body")...)
	m, err := s.Store(ctx, broken, "broken.png", Options{Compress: true, GenerateThumbnail: true})
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.MimeType)
	assert.Nil(t, m.CompressedSize)
	assert.False(t, m.HasThumbnail)

	b, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, broken, b.Data)
	assert.Nil(t, b.Thumbnail)
}

func TestStore_ThumbnailPreservesAspect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)

	m, err := s.Store(ctx, encodePNG(t, noisyImage(400, 100)), "banner.png", Options{GenerateThumbnail: true})
	require.NoError(t, err)
	require.True(t, m.HasThumbnail)

	b, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	w, h := decodeSize(t, b.Thumbnail)
	assert.Equal(t, 200, w)
	assert.Equal(t, 50, h)
}

func TestStore_URLHandles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)

	img := encodePNG(t, noisyImage(64, 64))
	m, err := s.Store(ctx, img, "icon.png", Options{GenerateThumbnail: true})
	require.NoError(t, err)
	plain, err := s.Store(ctx, []byte("%PDF-1.4 fake"), "doc.pdf", Options{GenerateThumbnail: true})
	require.NoError(t, err)

	u1, err := s.GetURL(ctx, m.ID, false)
	require.NoError(t, err)
	u2, err := s.GetURL(ctx, m.ID, false)
	require.NoError(t, err)
	ut, err := s.GetURL(ctx, m.ID, true)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
	assert.NotEqual(t, u1, ut)
	assert.Contains(t, u1, "blob:gophstore/")

	data, mimeType, err := s.ResolveURL(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "image/png", mimeType)

	_, mimeType, err = s.ResolveURL(ctx, ut)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)

	_, err = s.GetURL(ctx, plain.ID, true)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.GetURL(ctx, "missing", false)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.OpenURLs)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 1, st.Thumbnails)

	assert.Equal(t, 2, s.RevokeAllURLs())
	_, _, err = s.ResolveURL(ctx, u1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, s.RevokeURL(m.ID))
}

func TestStore_CleanupByLastAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	stale, err := s.Store(ctx, []byte("stale"), "a.txt", Options{})
	require.NoError(t, err)
	fresh, err := s.Store(ctx, []byte("fresh"), "b.txt", Options{})
	require.NoError(t, err)

	s.now = func() time.Time { return t0.Add(10 * 24 * time.Hour) }
	_, err = s.Get(ctx, fresh.ID)
	require.NoError(t, err)

	m, err := s.GetMetadata(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, m.LastAccessed.Equal(t0.Add(10*24*time.Hour)))

	removed, err := s.Cleanup(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetMetadata(ctx, stale.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	ok, err := s.Exists(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Cleanup(ctx, -1)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestStore_Restore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, 0)
	at := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)

	size := int64(3)
	b := &Blob{
		Metadata: Metadata{ID: "fixed-id", Filename: "r.bin", MimeType: "application/octet-stream",
			Size: 10, CompressedSize: &size, UploadedAt: at, LastAccessed: at},
		Data:      []byte{1, 2, 3},
		Thumbnail: []byte{9},
	}
	require.NoError(t, s.Restore(ctx, b))
	require.NoError(t, s.Restore(ctx, b), "restore replaces")

	got, err := s.Get(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
	assert.True(t, got.HasThumbnail)
	assert.True(t, got.UploadedAt.Equal(at))
	require.NotNil(t, got.CompressedSize)
	assert.Equal(t, int64(3), got.StoredSize())

	require.ErrorIs(t, s.Restore(ctx, &Blob{}), common.ErrorValidation)
}
