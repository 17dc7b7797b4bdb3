package localdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/dbx"
	"github.com/google/uuid"
)

// SQLiteDatabase stores documents in the documents table.
type SQLiteDatabase struct {
	db  dbx.DBTX
	now func() time.Time
}

var _ Database = (*SQLiteDatabase)(nil)

func NewSQLiteDatabase(db dbx.DBTX) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, now: time.Now}
}

// WithTx runs fn against a database bound to a single transaction.
func WithTx(ctx context.Context, db dbx.TxBeginner, fn func(ctx context.Context, tx *SQLiteDatabase) error) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewSQLiteDatabase(tx))
	})
}

func (r *SQLiteDatabase) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	return decodeDocument(data)
}

// Put stores doc under its id, generating one when missing. created_at and
// updated_at are stamped unless the caller supplied them. The caller's map
// is not modified.
func (r *SQLiteDatabase) Put(ctx context.Context, collection string, doc Document) (Document, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection name", common.ErrorValidation)
	}

	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}

	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[FieldID] = id
	}

	now := r.now()
	stamp := FormatTime(now)
	if _, ok := stored[FieldCreatedAt]; !ok {
		stored[FieldCreatedAt] = stamp
	}
	if _, ok := stored[FieldUpdatedAt]; !ok {
		stored[FieldUpdatedAt] = stamp
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, collection, id, data, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to put document %s/%s: %w", collection, id, err)
	}

	return stored, nil
}

func (r *SQLiteDatabase) Delete(ctx context.Context, collection, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// GetAll returns the collection in insertion order.
func (r *SQLiteDatabase) GetAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = ? ORDER BY created_at, rowid`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents of %s: %w", collection, err)
	}
	defer rows.Close()

	var result []Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteDatabase) Clear(ctx context.Context, collection string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}

func (r *SQLiteDatabase) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// Collections lists every collection holding at least one document.
func (r *SQLiteDatabase) Collections(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		result = append(result, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection rows: %w", err)
	}

	return result, nil
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
