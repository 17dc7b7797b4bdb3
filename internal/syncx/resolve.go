package syncx

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
)

// DocumentTime is the recency of a document: updated_at, else created_at,
// else the Unix epoch.
func DocumentTime(doc localdb.Document) time.Time {
	if t, ok := doc.Time(localdb.FieldUpdatedAt); ok {
		return t
	}
	if t, ok := doc.Time(localdb.FieldCreatedAt); ok {
		return t
	}
	return time.Unix(0, 0)
}

// ResolveConflict picks or builds the surviving version of a document.
// Ties on timestamps go to remote. Under StrategyManual the conflict is
// persisted and a *ConflictError is returned. An empty strategy selects the
// engine default.
func (e *Engine) ResolveConflict(ctx context.Context, collection string, local, remote localdb.Document, strategy Strategy) (localdb.Document, error) {
	if strategy == "" {
		strategy = e.strategy
	}

	switch strategy {
	case StrategyLocalWins:
		return local.Clone(), nil
	case StrategyRemoteWins:
		return remote.Clone(), nil
	case StrategyLatestWins:
		if DocumentTime(local).After(DocumentTime(remote)) {
			return local.Clone(), nil
		}
		return remote.Clone(), nil
	case StrategyMergeDeep:
		localWins := DocumentTime(local).After(DocumentTime(remote))
		return mergeDeep(local, remote, localWins), nil
	case StrategyManual:
		return nil, e.parkConflict(ctx, collection, local, remote)
	}

	return nil, fmt.Errorf("%w: unknown conflict strategy %q", common.ErrorValidation, strategy)
}

func (e *Engine) parkConflict(ctx context.Context, collection string, local, remote localdb.Document) error {
	docID := local.ID()
	if docID == "" {
		docID = remote.ID()
	}

	c := Conflict{
		ID:              conflictID(collection, docID),
		Collection:      collection,
		DocID:           docID,
		LocalVersion:    local.Clone(),
		RemoteVersion:   remote.Clone(),
		LocalTimestamp:  DocumentTime(local).UTC(),
		RemoteTimestamp: DocumentTime(remote).UTC(),
		DetectedAt:      e.now().UTC(),
	}
	if err := e.conflicts.Put(ctx, c.ID, &c); err != nil {
		return fmt.Errorf("failed to persist conflict %s: %w", c.ID, err)
	}

	e.log.Info(ctx, "conflict parked for manual resolution", "collection", collection, "id", docID)
	return &ConflictError{Conflict: c}
}

// mergeDeep merges nested objects key by key. Keys present on one side
// only are kept. Any other disagreement (scalars, arrays, type changes) is
// settled for the whole document at once by localWins.
func mergeDeep(local, remote map[string]any, localWins bool) localdb.Document {
	out := make(localdb.Document, len(local)+len(remote))
	for k, v := range local {
		out[k] = v
	}

	for k, rv := range remote {
		lv, ok := local[k]
		if !ok {
			out[k] = rv
			continue
		}

		lm, lok := asObject(lv)
		rm, rok := asObject(rv)
		switch {
		case lok && rok:
			out[k] = map[string]any(mergeDeep(lm, rm, localWins))
		case localWins:
			out[k] = lv
		default:
			out[k] = rv
		}
	}

	return localdb.Document(out).Clone()
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case localdb.Document:
		return m, true
	}
	return nil, false
}
