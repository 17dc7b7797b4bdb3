package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
)

// Repository is the persistence of blobs. Insert and Delete touch two
// tables and are expected to run inside a transaction.
type Repository interface {
	Insert(ctx context.Context, b *Blob) error
	Get(ctx context.Context, id string) (*Blob, error)
	GetMetadata(ctx context.Context, id string) (*Metadata, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// Delete returns common.ErrorNotFound when there was nothing to delete.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Metadata, error)
	// AccessedBefore lists ids whose last access predates cutoff.
	AccessedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const metadataColumns = `id, filename, mime_type, size, compressed_size, uploaded_at, last_accessed, has_thumbnail`

// Insert writes or replaces a blob.
func (r *SQLiteRepository) Insert(ctx context.Context, b *Blob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blobs (id, data, thumbnail) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, thumbnail = excluded.thumbnail
	`, b.ID, b.Data, b.Thumbnail)
	if err != nil {
		return fmt.Errorf("failed to insert blob %s: %w", b.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blob_metadata (`+metadataColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			size = excluded.size,
			compressed_size = excluded.compressed_size,
			uploaded_at = excluded.uploaded_at,
			last_accessed = excluded.last_accessed,
			has_thumbnail = excluded.has_thumbnail
	`, b.ID, b.Filename, b.MimeType, b.Size, b.CompressedSize,
		b.UploadedAt.UnixMilli(), b.LastAccessed.UnixMilli(), b.HasThumbnail)
	if err != nil {
		return fmt.Errorf("failed to insert blob metadata %s: %w", b.ID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner, extra ...any) (*Metadata, error) {
	var (
		m          Metadata
		compressed sql.NullInt64
		uploaded   int64
		accessed   int64
	)

	dest := append([]any{&m.ID, &m.Filename, &m.MimeType, &m.Size, &compressed, &uploaded, &accessed, &m.HasThumbnail}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if compressed.Valid {
		v := compressed.Int64
		m.CompressedSize = &v
	}
	m.UploadedAt = time.UnixMilli(uploaded).UTC()
	m.LastAccessed = time.UnixMilli(accessed).UTC()
	return &m, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Blob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.id, m.filename, m.mime_type, m.size, m.compressed_size, m.uploaded_at, m.last_accessed, m.has_thumbnail,
		       b.data, b.thumbnail
		FROM blob_metadata m JOIN blobs b ON b.id = m.id
		WHERE m.id = ?`, id)

	var data, thumb []byte
	m, err := scanMetadata(row, &data, &thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", id, err)
	}

	return &Blob{Metadata: *m, Data: data, Thumbnail: thumb}, nil
}

func (r *SQLiteRepository) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM blob_metadata WHERE id = ?`, id)

	m, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob metadata %s: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE blob_metadata SET last_accessed = ? WHERE id = ?`, at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to touch blob %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blob_metadata WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete blob metadata %s: %w", id, err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Metadata, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+metadataColumns+` FROM blob_metadata ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var result []Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blob metadata row: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob metadata rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) AccessedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM blob_metadata WHERE last_accessed < ? ORDER BY last_accessed`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to select stale blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan blob id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob ids: %w", err)
	}
	return ids, nil
}
