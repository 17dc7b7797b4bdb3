package syncx

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Strategy decides which side of a conflict survives.
type Strategy string

const (
	StrategyLocalWins  Strategy = "local-wins"
	StrategyRemoteWins Strategy = "remote-wins"
	StrategyLatestWins Strategy = "latest-wins"
	StrategyMergeDeep  Strategy = "merge-deep"
	StrategyManual     Strategy = "manual"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyLocalWins, StrategyRemoteWins, StrategyLatestWins, StrategyMergeDeep, StrategyManual:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown conflict strategy %q", common.ErrorValidation, s)
}

// Record is one entry of the change log. Synced flips false to true once.
type Record struct {
	ID         string           `json:"id"`
	Collection string           `json:"collectionName"`
	DocID      string           `json:"docId"`
	Operation  Operation        `json:"operation"`
	Data       localdb.Document `json:"data,omitempty"`
	Version    int64            `json:"version"`
	Timestamp  time.Time        `json:"timestamp"`
	Synced     bool             `json:"synced"`
	SyncedAt   *time.Time       `json:"syncedAt,omitempty"`
}

// Conflict is a divergence parked for manual resolution.
type Conflict struct {
	ID              string           `json:"id"`
	Collection      string           `json:"collectionName"`
	DocID           string           `json:"docId"`
	LocalVersion    localdb.Document `json:"localVersion"`
	RemoteVersion   localdb.Document `json:"remoteVersion"`
	LocalTimestamp  time.Time        `json:"localTimestamp"`
	RemoteTimestamp time.Time        `json:"remoteTimestamp"`
	DetectedAt      time.Time        `json:"detectedAt"`
}

func conflictID(collection, docID string) string {
	return collection + ":" + docID
}

// ConflictError is returned when the manual strategy parks a conflict.
// It matches common.ErrorManualResolution.
type ConflictError struct {
	Conflict Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Conflict.Collection, e.Conflict.DocID, common.ErrorManualResolution)
}

func (e *ConflictError) Is(target error) bool {
	return target == common.ErrorManualResolution
}

// DocError is a per-document failure of a batch.
type DocError struct {
	DocID string
	Err   error
}

func (e DocError) Error() string {
	return fmt.Sprintf("document %q: %v", e.DocID, e.Err)
}

func (e DocError) Unwrap() error {
	return e.Err
}

// Result summarises one Sync call.
type Result struct {
	Collection string
	// Synced counts documents inserted, resolved or already equal.
	Synced    int
	Conflicts []Conflict
	Errors    []DocError
	// Push holds local documents the remote set lacks.
	Push []localdb.Document
	// Resolved holds stored documents whose resolution differs from the
	// remote version, so the remote needs them too.
	Resolved []localdb.Document
}

// Status is a snapshot of the change log.
type Status struct {
	Pending   int
	Conflicts int
	LastSync  time.Time
}

// ApplyHook observes every document Sync or ResolveManualConflict writes.
type ApplyHook func(ctx context.Context, collection string, doc localdb.Document)
