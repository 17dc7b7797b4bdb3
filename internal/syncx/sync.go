package syncx

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/google/go-cmp/cmp"
)

// Sync reconciles a collection with the complete remote set. Documents
// missing locally are inserted, documents on both sides are resolved with
// strategy, and local documents the remote lacks are returned in Push.
// Resolutions that keep a version other than the remote one are returned in
// Resolved. A failure on one document is recorded in the result and never aborts the
// batch. The returned error covers only failures that prevent the batch
// from starting.
func (e *Engine) Sync(ctx context.Context, collection string, remote []localdb.Document, strategy Strategy) (*Result, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", common.ErrorValidation)
	}
	if strategy == "" {
		strategy = e.strategy
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	local, err := e.db.GetAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}
	localByID := make(map[string]localdb.Document, len(local))
	for _, doc := range local {
		localByID[doc.ID()] = doc
	}

	res := &Result{Collection: collection}
	seen := make(map[string]struct{}, len(remote))

	for _, rdoc := range remote {
		id := rdoc.ID()
		if id == "" {
			res.Errors = append(res.Errors, DocError{Err: fmt.Errorf("%w: remote document without id", common.ErrorValidation)})
			continue
		}
		seen[id] = struct{}{}

		kept, err := e.syncOne(ctx, collection, localByID[id], rdoc, strategy)
		if err != nil {
			var ce *ConflictError
			if errors.As(err, &ce) {
				res.Conflicts = append(res.Conflicts, ce.Conflict)
				continue
			}
			e.log.Warn(ctx, "document failed to sync", "collection", collection, "id", id, "error", err)
			res.Errors = append(res.Errors, DocError{DocID: id, Err: err})
			continue
		}
		res.Synced++
		if kept != nil {
			res.Resolved = append(res.Resolved, kept)
		}
	}

	for _, doc := range local {
		if _, ok := seen[doc.ID()]; !ok {
			res.Push = append(res.Push, doc)
		}
	}

	e.markLastSync(ctx, collection)
	e.log.Info(ctx, "collection synced", "collection", collection, "synced", res.Synced,
		"conflicts", len(res.Conflicts), "errors", len(res.Errors), "push", len(res.Push), "resolved", len(res.Resolved))
	return res, nil
}

// syncOne reconciles one remote document. It returns the stored version when
// the resolution differs from what the remote sent.
func (e *Engine) syncOne(ctx context.Context, collection string, local, remote localdb.Document, strategy Strategy) (localdb.Document, error) {
	remote, err := localdb.Normalize(remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	if local == nil {
		stored, err := e.db.Put(ctx, collection, remote)
		if err != nil {
			return nil, err
		}
		e.apply(ctx, collection, stored)
		return nil, nil
	}

	if sameDocument(local, remote) {
		return nil, nil
	}

	resolved, err := e.ResolveConflict(ctx, collection, local, remote, strategy)
	if err != nil {
		return nil, err
	}

	stored := local
	if !cmp.Equal(local, resolved) {
		stored, err = e.db.Put(ctx, collection, resolved)
		if err != nil {
			return nil, err
		}
		e.apply(ctx, collection, stored)
	}

	if sameDocument(stored, remote) {
		return nil, nil
	}
	return stored, nil
}

// sameDocument compares doc with ref, skipping the timestamps Put stamped on
// doc that ref never carried.
func sameDocument(doc, ref localdb.Document) bool {
	view := make(localdb.Document, len(doc))
	for k, v := range doc {
		if k == localdb.FieldCreatedAt || k == localdb.FieldUpdatedAt {
			if _, ok := ref[k]; !ok {
				continue
			}
		}
		view[k] = v
	}
	return cmp.Equal(view, ref)
}
