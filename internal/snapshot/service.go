package snapshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/blobstore"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
	"github.com/dmitrijs2005/gophstore/internal/logging"
)

// BlobCollection names blob failures in ItemError.
const BlobCollection = "blobs"

// WriteHook observes every document Import writes.
type WriteHook func(ctx context.Context, collection string, doc localdb.Document)

type Service struct {
	db      localdb.Database
	blobs   *blobstore.Store
	log     logging.Logger
	now     func() time.Time
	onWrite WriteHook
}

type Option func(*Service)

func WithWriteHook(h WriteHook) Option {
	return func(s *Service) { s.onWrite = h }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the service. blobs may be nil, in which case blobs are
// neither exported nor imported.
func New(db localdb.Database, blobs *blobstore.Store, log logging.Logger, opts ...Option) *Service {
	s := &Service{
		db:    db,
		blobs: blobs,
		log:   log.With("component", "snapshot"),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) collections(ctx context.Context, opts ExportOptions) ([]string, error) {
	if len(opts.Collections) > 0 {
		names := slices.Clone(opts.Collections)
		slices.Sort(names)
		return slices.Compact(names), nil
	}

	all, err := s.db.Collections(ctx)
	if err != nil {
		return nil, err
	}
	if opts.IncludeInternal {
		return all, nil
	}
	return slices.DeleteFunc(all, func(name string) bool {
		return strings.HasPrefix(name, "_")
	}), nil
}

// Export reads the selected collections (and blobs) into a Snapshot.
func (s *Service) Export(ctx context.Context, opts ExportOptions) (*Snapshot, error) {
	names, err := s.collections(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	snap := &Snapshot{
		Metadata: Metadata{
			ExportedAt: s.now().UTC(),
			Version:    FormatVersion,
			Stores:     names,
		},
		Data: make(map[string][]localdb.Document, len(names)),
	}

	for _, name := range names {
		docs, err := s.db.GetAll(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if docs == nil {
			docs = []localdb.Document{}
		}
		snap.Data[name] = docs
		snap.Metadata.TotalRecords += len(docs)
	}

	if opts.IncludeBlobs && s.blobs != nil {
		if err := s.exportBlobs(ctx, snap); err != nil {
			return nil, err
		}
	}

	s.log.Info(ctx, "snapshot exported",
		"collections", len(names), "records", snap.Metadata.TotalRecords, "blobs", len(snap.Blobs))
	return snap, nil
}

func (s *Service) exportBlobs(ctx context.Context, snap *Snapshot) error {
	list, err := s.blobs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list blobs: %w", err)
	}

	snap.Blobs = make(map[string]BlobEntry, len(list))
	for _, m := range list {
		b, err := s.blobs.Peek(ctx, m.ID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", m.ID, err)
		}

		entry := BlobEntry{
			Data:     base64.StdEncoding.EncodeToString(b.Data),
			Metadata: b.Metadata,
		}
		if len(b.Thumbnail) > 0 {
			entry.Thumbnail = base64.StdEncoding.EncodeToString(b.Thumbnail)
		}
		snap.Blobs[m.ID] = entry
	}
	snap.Metadata.IncludesBlobs = true
	return nil
}

// Import writes snap into the database. Records that fail are reported in
// the result and never stop the rest of the batch; the returned error is
// reserved for snapshots that cannot be imported at all.
func (s *Service) Import(ctx context.Context, snap *Snapshot, opts ImportOptions) (*ImportResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", common.ErrorValidation)
	}
	if snap.Metadata.Version != "" && snap.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %q", common.ErrorValidation, snap.Metadata.Version)
	}
	if opts.Mode == "" {
		opts.Mode = ModeSkip
	}

	res := &ImportResult{}
	for _, name := range slices.Sorted(maps.Keys(snap.Data)) {
		for _, doc := range snap.Data[name] {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			s.importDoc(ctx, name, doc, opts.Mode, res)
		}
	}

	if len(snap.Blobs) > 0 && s.blobs != nil {
		for _, id := range slices.Sorted(maps.Keys(snap.Blobs)) {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			s.importBlob(ctx, id, snap.Blobs[id], opts.Mode, res)
		}
	}

	s.log.Info(ctx, "snapshot imported", "mode", string(opts.Mode),
		"imported", res.Imported, "skipped", res.Skipped, "blobs", res.Blobs, "errors", len(res.Errors))
	return res, nil
}

func (s *Service) importDoc(ctx context.Context, collection string, doc localdb.Document, mode Mode, res *ImportResult) {
	id := doc.ID()
	fail := func(err error) {
		res.Errors = append(res.Errors, ItemError{Collection: collection, ID: id, Err: err})
	}
	if doc == nil {
		fail(fmt.Errorf("%w: empty record", common.ErrorValidation))
		return
	}

	if id != "" {
		existing, err := s.db.Get(ctx, collection, id)
		switch {
		case errors.Is(err, common.ErrorNotFound):
		case err != nil:
			fail(err)
			return
		case mode == ModeSkip:
			res.Skipped++
			return
		case mode == ModeMerge:
			merged := existing.Clone()
			maps.Copy(merged, doc)
			doc = merged
		}
	}

	saved, err := s.db.Put(ctx, collection, doc)
	if err != nil {
		fail(err)
		return
	}
	res.Imported++
	if s.onWrite != nil {
		s.onWrite(ctx, collection, saved)
	}
}

func (s *Service) importBlob(ctx context.Context, id string, e BlobEntry, mode Mode, res *ImportResult) {
	fail := func(err error) {
		res.Errors = append(res.Errors, ItemError{Collection: BlobCollection, ID: id, Err: err})
	}

	if mode == ModeSkip {
		ok, err := s.blobs.Exists(ctx, id)
		if err != nil {
			fail(err)
			return
		}
		if ok {
			res.Skipped++
			return
		}
	}

	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		fail(fmt.Errorf("%w: blob data is not base64", common.ErrorValidation))
		return
	}
	var thumb []byte
	if e.Thumbnail != "" {
		if thumb, err = base64.StdEncoding.DecodeString(e.Thumbnail); err != nil {
			fail(fmt.Errorf("%w: thumbnail is not base64", common.ErrorValidation))
			return
		}
	}

	meta := e.Metadata
	meta.ID = id
	if meta.Size == 0 {
		meta.Size = int64(len(data))
	}
	if meta.UploadedAt.IsZero() {
		meta.UploadedAt = s.now()
	}
	if meta.LastAccessed.IsZero() {
		meta.LastAccessed = meta.UploadedAt
	}
	if err := s.blobs.Restore(ctx, &blobstore.Blob{Metadata: meta, Data: data, Thumbnail: thumb}); err != nil {
		fail(err)
		return
	}
	res.Blobs++
}
