package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/blobstore"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/config"
	"github.com/dmitrijs2005/gophstore/internal/filex"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/repositories/metadata"
	"github.com/dmitrijs2005/gophstore/internal/search"
	"github.com/dmitrijs2005/gophstore/internal/snapshot"
	"github.com/dmitrijs2005/gophstore/internal/store"
	"github.com/dmitrijs2005/gophstore/internal/syncx"
	"github.com/dmitrijs2005/gophstore/internal/vault"
)

// DatabaseFile is the SQLite file inside the data directory.
const DatabaseFile = "gophstore.db"

type Engine struct {
	cfg *config.Config
	log logging.Logger
	db  *sql.DB
	now func() time.Time

	Local     *localdb.SQLiteDatabase
	Meta      metadata.Repository
	Store     *store.Store
	Sync      *syncx.Engine
	Search    *search.Engine
	Blobs     *blobstore.Store
	Keys      *vault.Manager
	Secure    *vault.SecureStorage
	Snapshots *snapshot.Service

	closeOnce sync.Once
	closeErr  error
}

// New opens the data directory of cfg and builds every component.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Engine, error) {
	strategy, err := store.ParseStrategy(cfg.StoreStrategy)
	if err != nil {
		return nil, err
	}
	conflicts, err := syncx.ParseStrategy(cfg.ConflictStrategy)
	if err != nil {
		return nil, err
	}

	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := localdb.Open(ctx, filepath.Join(dir, DatabaseFile))
	if err != nil {
		return nil, err
	}

	st, err := store.Open(strategy, store.Deps{
		DB:       db,
		DataDir:  dir,
		CacheTTL: cfg.CacheTTL,
		Logger:   log,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	e := &Engine{
		cfg:   cfg,
		log:   log.With("component", "engine"),
		db:    db,
		now:   time.Now,
		Local: localdb.NewSQLiteDatabase(db),
		Meta:  metadata.NewSQLiteRepository(db),
		Store: st,
	}

	e.Search = search.New(e.Local, cfg.SearchMaxResults, log)
	e.Sync = syncx.New(e.Local, e.Meta, log,
		syncx.WithStrategy(conflicts),
		syncx.WithApplyHook(e.index),
	)
	e.Blobs = blobstore.New(db, cfg.BlobMaxSize, blobstore.Processor{
		Quality:       cfg.BlobCompressQuality,
		MaxDimension:  cfg.BlobMaxDimension,
		MaxPixels:     cfg.BlobMaxPixels,
		ThumbnailSize: cfg.ThumbnailSize,
	}, log)
	e.Keys = vault.NewManager(e.Meta, cfg.KDF, cfg.KDFIterations, log)
	e.Secure = vault.NewSecureStorage(st, e.Keys, log)
	e.Snapshots = snapshot.New(e.Local, e.Blobs, log, snapshot.WithWriteHook(e.index))

	e.log.Info(ctx, "engine started", "data_dir", dir, "store", string(strategy), "conflicts", string(conflicts))
	return e, nil
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func checkUserCollection(collection string) error {
	if collection == "" || strings.HasPrefix(collection, "_") {
		return fmt.Errorf("%w: invalid collection name %q", common.ErrorValidation, collection)
	}
	return nil
}

// PutDocument writes doc with a fresh updated_at, then records the change
// and refreshes the index as the collection's configuration asks.
func (e *Engine) PutDocument(ctx context.Context, collection string, doc localdb.Document) (localdb.Document, error) {
	if err := checkUserCollection(collection); err != nil {
		return nil, err
	}

	doc = doc.Clone()
	if doc == nil {
		doc = localdb.Document{}
	}
	doc[localdb.FieldUpdatedAt] = localdb.FormatTime(e.now())

	op := syncx.OperationCreate
	if id := doc.ID(); id != "" {
		_, err := e.Local.Get(ctx, collection, id)
		switch {
		case err == nil:
			op = syncx.OperationUpdate
		case !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}
	}

	saved, err := e.Local.Put(ctx, collection, doc)
	if err != nil {
		return nil, err
	}

	if e.cfg.IsSynced(collection) {
		if _, err := e.Sync.TrackChange(ctx, collection, saved.ID(), op, saved); err != nil {
			return saved, err
		}
	}
	e.index(ctx, collection, saved)
	return saved, nil
}

func (e *Engine) GetDocument(ctx context.Context, collection, id string) (localdb.Document, error) {
	return e.Local.Get(ctx, collection, id)
}

// DeleteDocument removes the document, logs a delete for synced
// collections and drops its index entry. Deleting a missing document is a
// no-op and records nothing.
func (e *Engine) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := checkUserCollection(collection); err != nil {
		return err
	}

	if _, err := e.Local.Get(ctx, collection, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	if err := e.Local.Delete(ctx, collection, id); err != nil {
		return err
	}

	if e.cfg.IsSynced(collection) {
		if _, err := e.Sync.TrackChange(ctx, collection, id, syncx.OperationDelete, nil); err != nil {
			return err
		}
	}
	if _, ok := e.cfg.IndexedFields(collection); ok {
		if err := e.Search.RemoveDocument(ctx, collection, id); err != nil {
			e.log.Warn(ctx, "failed to drop index entry", "collection", collection, "id", id, "error", err)
		}
	}
	return nil
}

// Reindex rebuilds the index of every searchable collection.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	total := 0
	for collection, fields := range e.cfg.SearchCollections {
		n, err := e.Search.ReindexCollection(ctx, collection, fields)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) index(ctx context.Context, collection string, doc localdb.Document) {
	fields, ok := e.cfg.IndexedFields(collection)
	if !ok {
		return
	}
	if _, err := e.Search.IndexDocument(ctx, collection, doc.ID(), doc, fields); err != nil {
		e.log.Warn(ctx, "failed to index document", "collection", collection, "id", doc.ID(), "error", err)
	}
}

// Close revokes blob handles, wipes keys and closes the databases. It is
// safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.Blobs.RevokeAllURLs()
		e.Secure.Lock()
		e.Keys.Lock()
		e.closeErr = errors.Join(e.Store.Close(), e.db.Close())
	})
	return e.closeErr
}
