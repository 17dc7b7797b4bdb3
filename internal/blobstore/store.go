package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/google/uuid"
)

// DefaultMaxSize is the upload limit when none is configured.
const DefaultMaxSize = 10 << 20

// Options tune a single Store call.
type Options struct {
	Compress          bool
	GenerateThumbnail bool
}

type Store struct {
	db      *sql.DB
	repo    Repository
	proc    Processor
	urls    *URLCache
	maxSize int64
	log     logging.Logger
	now     func() time.Time
}

func New(db *sql.DB, maxSize int64, proc Processor, log logging.Logger) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		db:      db,
		repo:    NewSQLiteRepository(db),
		proc:    proc.withDefaults(),
		urls:    NewURLCache(),
		maxSize: maxSize,
		log:     log.With("component", "blobstore"),
		now:     time.Now,
	}
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Store validates and persists a payload and returns its metadata.
// Compression and thumbnail failures are logged and never fail the call.
func (s *Store) Store(ctx context.Context, data []byte, filename string, opts Options) (*Metadata, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty blob", common.ErrorValidation)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: blob of %d bytes exceeds the %d byte limit", common.ErrorValidation, len(data), s.maxSize)
	}

	now := s.now().UTC()
	b := &Blob{
		Metadata: Metadata{
			ID:           uuid.NewString(),
			Filename:     filename,
			MimeType:     DetectMIME(data, filename),
			Size:         int64(len(data)),
			UploadedAt:   now,
			LastAccessed: now,
		},
		Data: data,
	}

	image := IsImage(b.MimeType)

	if opts.Compress && image {
		out, mimeType, err := s.proc.Compress(data)
		switch {
		case err != nil:
			s.log.Warn(ctx, "image compression failed, keeping original", "filename", filename, "error", err)
		case len(out) >= len(data):
			s.log.Debug(ctx, "compressed image is not smaller, keeping original", "filename", filename)
		default:
			size := int64(len(out))
			b.Data = out
			b.MimeType = mimeType
			b.CompressedSize = &size
		}
	}

	if opts.GenerateThumbnail && image {
		thumb, err := s.proc.Thumbnail(data)
		if err != nil {
			s.log.Warn(ctx, "thumbnail generation failed", "filename", filename, "error", err)
		} else {
			b.Thumbnail = thumb
			b.HasThumbnail = true
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).Insert(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "blob stored", "id", b.ID, "size", b.Size, "stored", b.StoredSize())
	m := b.Metadata
	return &m, nil
}

// Restore writes a blob exactly as given, replacing any blob with the same
// id. Import uses it to bring back exported blobs.
func (s *Store) Restore(ctx context.Context, b *Blob) error {
	if b.ID == "" {
		return fmt.Errorf("%w: blob without id", common.ErrorValidation)
	}
	b.HasThumbnail = len(b.Thumbnail) > 0

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).Insert(ctx, b)
	})
	if err != nil {
		return err
	}
	s.urls.Revoke(b.ID)
	return nil
}

func (s *Store) touch(ctx context.Context, id string) {
	if err := s.repo.Touch(ctx, id, s.now()); err != nil {
		s.log.Warn(ctx, "failed to update last access", "id", id, "error", err)
	}
}

// Get returns the stored bytes and metadata and refreshes the last access
// time.
func (s *Store) Get(ctx context.Context, id string) (*Blob, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.touch(ctx, id)
	return b, nil
}

// Peek is Get without the access-time update, for backups.
func (s *Store) Peek(ctx context.Context, id string) (*Blob, error) {
	return s.repo.Get(ctx, id)
}

func (s *Store) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	return s.repo.GetMetadata(ctx, id)
}

// Exists reports whether a blob with the id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.repo.GetMetadata(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetURL returns the memoized handle of the blob or its thumbnail. Asking
// for the thumbnail of a blob without one is common.ErrorNotFound.
func (s *Store) GetURL(ctx context.Context, id string, useThumbnail bool) (string, error) {
	m, err := s.repo.GetMetadata(ctx, id)
	if err != nil {
		return "", err
	}
	if useThumbnail && !m.HasThumbnail {
		return "", fmt.Errorf("thumbnail of %s: %w", id, common.ErrorNotFound)
	}

	s.touch(ctx, id)
	return s.urls.Acquire(id, useThumbnail), nil
}

// ResolveURL returns the bytes and MIME type a live handle points to.
func (s *Store) ResolveURL(ctx context.Context, handle string) ([]byte, string, error) {
	id, thumb, ok := s.urls.Resolve(handle)
	if !ok {
		return nil, "", fmt.Errorf("handle %q: %w", handle, common.ErrorNotFound)
	}

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if thumb {
		return b.Thumbnail, "image/jpeg", nil
	}
	return b.Data, b.MimeType, nil
}

// RevokeURL releases the handles of one blob.
func (s *Store) RevokeURL(id string) int {
	return s.urls.Revoke(id)
}

// RevokeAllURLs releases every handle. Owners must call it on teardown.
func (s *Store) RevokeAllURLs() int {
	return s.urls.RevokeAll()
}

// Delete removes bytes, metadata and handles of the blob.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).Delete(ctx, id)
	})
	s.urls.Revoke(id)
	return err
}

// Cleanup deletes every blob not accessed for olderThanDays days and
// returns how many went. Failures are collected, not fatal.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("%w: negative retention", common.ErrorValidation)
	}

	cutoff := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	ids, err := s.repo.AccessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("blob %s: %w", id, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info(ctx, "stale blobs removed", "count", removed, "older_than_days", olderThanDays)
	}
	return removed, errors.Join(errs...)
}

func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	return s.repo.List(ctx)
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Count: len(all), OpenURLs: s.urls.Len()}
	for _, m := range all {
		st.TotalSize += m.Size
		st.StoredSize += m.StoredSize()
		if m.HasThumbnail {
			st.Thumbnails++
		}
	}
	return st, nil
}
