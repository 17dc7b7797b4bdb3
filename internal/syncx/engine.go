package syncx

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/repositories/metadata"
	"github.com/google/uuid"
)

// Collections the engine keeps its own state in.
const (
	RecordsCollection   = "_sync_records"
	ConflictsCollection = "_sync_conflicts"
)

const lastSyncKeyPrefix = "sync:last:"

type Engine struct {
	db        localdb.Database
	records   *localdb.Collection[Record]
	conflicts *localdb.Collection[Conflict]
	meta      metadata.Repository
	log       logging.Logger

	strategy Strategy
	onApply  ApplyHook
	now      func() time.Time

	mu          sync.Mutex
	lastVersion int64
	seeded      bool
}

type Option func(*Engine)

// WithStrategy sets the default conflict strategy (latest-wins otherwise).
func WithStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

func WithApplyHook(h ApplyHook) Option {
	return func(e *Engine) { e.onApply = h }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(db localdb.Database, meta metadata.Repository, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		records:   localdb.NewCollection[Record](db, RecordsCollection),
		conflicts: localdb.NewCollection[Conflict](db, ConflictsCollection),
		meta:      meta,
		log:       log.With("component", "sync"),
		strategy:  StrategyLatestWins,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) DefaultStrategy() Strategy {
	return e.strategy
}

// nextVersion returns max(now, last+1) so versions strictly increase even
// when the clock stalls or steps back.
func (e *Engine) nextVersion(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.seeded {
		all, err := e.records.All(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load change log: %w", err)
		}
		for _, r := range all {
			e.lastVersion = max(e.lastVersion, r.Version)
		}
		e.seeded = true
	}

	v := max(e.now().UnixMilli(), e.lastVersion+1)
	e.lastVersion = v
	return v, nil
}

// TrackChange appends a change record. It must be called after the
// mutation it describes has been written.
func (e *Engine) TrackChange(ctx context.Context, collection, docID string, op Operation, data localdb.Document) (Record, error) {
	if collection == "" || docID == "" {
		return Record{}, fmt.Errorf("%w: collection and document id are required", common.ErrorValidation)
	}
	if !op.Valid() {
		return Record{}, fmt.Errorf("%w: unknown operation %q", common.ErrorValidation, op)
	}

	version, err := e.nextVersion(ctx)
	if err != nil {
		return Record{}, err
	}

	r := Record{
		ID:         uuid.NewString(),
		Collection: collection,
		DocID:      docID,
		Operation:  op,
		Data:       data.Clone(),
		Version:    version,
		Timestamp:  e.now().UTC(),
	}
	if err := e.records.Put(ctx, r.ID, &r); err != nil {
		return Record{}, fmt.Errorf("failed to track change: %w", err)
	}

	e.log.Debug(ctx, "change tracked", "collection", collection, "id", docID, "operation", string(op), "version", version)
	return r, nil
}

// GetPendingChanges returns unsynced records ordered by version ascending.
// An empty collection selects every collection.
func (e *Engine) GetPendingChanges(ctx context.Context, collection string) ([]Record, error) {
	all, err := e.records.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load change log: %w", err)
	}

	pending := make([]Record, 0, len(all))
	for _, r := range all {
		if r.Synced || (collection != "" && r.Collection != collection) {
			continue
		}
		pending = append(pending, r)
	}

	slices.SortStableFunc(pending, func(a, b Record) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return pending, nil
}

// MarkSynced flags a record as pushed. Marking an already synced record is
// a no-op.
func (e *Engine) MarkSynced(ctx context.Context, id string) error {
	r, err := e.records.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("sync record %s: %w", id, err)
	}
	if r.Synced {
		return nil
	}

	at := e.now().UTC()
	r.Synced = true
	r.SyncedAt = &at
	if err := e.records.Put(ctx, id, r); err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", id, err)
	}
	return nil
}

// MarkAllSynced marks every pending record of the collection ("" for all)
// and returns how many changed.
func (e *Engine) MarkAllSynced(ctx context.Context, collection string) (int, error) {
	pending, err := e.GetPendingChanges(ctx, collection)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range pending {
		if err := e.MarkSynced(ctx, r.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// PurgeSynced deletes synced records older than the given age. The log
// stays append-only for everything not yet synced.
func (e *Engine) PurgeSynced(ctx context.Context, olderThan time.Duration) (int, error) {
	all, err := e.records.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load change log: %w", err)
	}

	cutoff := e.now().Add(-olderThan)
	n := 0
	for _, r := range all {
		if !r.Synced || r.SyncedAt == nil || !r.SyncedAt.Before(cutoff) {
			continue
		}
		if err := e.records.Delete(ctx, r.ID); err != nil {
			return n, fmt.Errorf("failed to purge %s: %w", r.ID, err)
		}
		n++
	}
	return n, nil
}

// GetConflicts lists parked conflicts of a collection ("" for all).
func (e *Engine) GetConflicts(ctx context.Context, collection string) ([]Conflict, error) {
	all, err := e.conflicts.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflicts: %w", err)
	}
	if collection == "" {
		return all, nil
	}

	result := make([]Conflict, 0, len(all))
	for _, c := range all {
		if c.Collection == collection {
			result = append(result, c)
		}
	}
	return result, nil
}

// ResolveManualConflict stores the chosen document, records the change
// for upload and drops the conflict.
func (e *Engine) ResolveManualConflict(ctx context.Context, id string, resolved localdb.Document) error {
	c, err := e.conflicts.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("conflict %s: %w", id, err)
	}

	doc := resolved.Clone()
	if doc == nil {
		return fmt.Errorf("%w: resolved document is empty", common.ErrorValidation)
	}
	doc[localdb.FieldID] = c.DocID

	stored, err := e.db.Put(ctx, c.Collection, doc)
	if err != nil {
		return fmt.Errorf("failed to store resolution of %s: %w", id, err)
	}
	e.apply(ctx, c.Collection, stored)

	if _, err := e.TrackChange(ctx, c.Collection, c.DocID, OperationUpdate, stored); err != nil {
		return err
	}

	if err := e.conflicts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to drop conflict %s: %w", id, err)
	}
	return nil
}

// Status reports pending and conflict counts and the last sync time of a
// collection ("" for all collections, in which case LastSync is the latest).
func (e *Engine) Status(ctx context.Context, collection string) (Status, error) {
	pending, err := e.GetPendingChanges(ctx, collection)
	if err != nil {
		return Status{}, err
	}
	conflicts, err := e.GetConflicts(ctx, collection)
	if err != nil {
		return Status{}, err
	}

	st := Status{Pending: len(pending), Conflicts: len(conflicts)}

	stamps, err := e.meta.List(ctx, lastSyncKeyPrefix+collection)
	if err != nil {
		return Status{}, err
	}
	for key, raw := range stamps {
		if collection != "" && key != lastSyncKeyPrefix+collection {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, string(raw)); err == nil && t.After(st.LastSync) {
			st.LastSync = t
		}
	}
	return st, nil
}

func (e *Engine) markLastSync(ctx context.Context, collection string) {
	stamp := e.now().UTC().Format(time.RFC3339Nano)
	if err := e.meta.Set(ctx, lastSyncKeyPrefix+collection, []byte(stamp)); err != nil {
		e.log.Warn(ctx, "failed to record sync time", "collection", collection, "error", err)
	}
}

func (e *Engine) apply(ctx context.Context, collection string, doc localdb.Document) {
	if e.onApply != nil {
		e.onApply(ctx, collection, doc)
	}
}
