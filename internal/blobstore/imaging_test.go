package blobstore

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inflatePNGHeader rewrites the IHDR of a valid PNG so it declares w x h
// while the body stays small.
func inflatePNGHeader(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	require.Equal(t, "IHDR", string(data[12:16]))

	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestProcessor_RejectsImagesOverPixelLimit(t *testing.T) {
	t.Parallel()

	huge := inflatePNGHeader(t, encodePNG(t, noisyImage(4, 4)), 12000, 12000)
	small := encodePNG(t, noisyImage(20, 20))

	tests := []struct {
		name string
		proc Processor
		data []byte
	}{
		{name: "declared size over default limit", proc: Processor{}, data: huge},
		{name: "real size over configured limit", proc: Processor{MaxPixels: 100}, data: small},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := tt.proc.Compress(tt.data)
			require.ErrorIs(t, err, common.ErrorValidation)

			_, err = tt.proc.Thumbnail(tt.data)
			require.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestProcessor_AcceptsImagesWithinPixelLimit(t *testing.T) {
	t.Parallel()

	p := Processor{MaxPixels: 400}
	data := encodePNG(t, noisyImage(20, 20))

	_, mimeType, err := p.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)

	thumb, err := p.Thumbnail(data)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)
}

func TestStore_OversizedImageKeepsOriginal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := localdb.Open(ctx, filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(db, 0, Processor{MaxPixels: 100}, logging.NewNop())

	data := encodePNG(t, noisyImage(40, 40))
	m, err := s.Store(ctx, data, "wide.png", Options{Compress: true, GenerateThumbnail: true})
	require.NoError(t, err)
	assert.Nil(t, m.CompressedSize)
	assert.False(t, m.HasThumbnail)

	b, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, data, b.Data)
}
