package snapshot

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophstore/internal/blobstore"
	"github.com/dmitrijs2005/gophstore/internal/localdb"
)

// FormatVersion is written to every snapshot and checked on import.
const FormatVersion = "1"

type Metadata struct {
	ExportedAt    time.Time `json:"exportedAt"`
	Version       string    `json:"version"`
	Stores        []string  `json:"stores"`
	TotalRecords  int       `json:"totalRecords"`
	IncludesBlobs bool      `json:"includesBlobs"`
}

// BlobEntry carries one blob; Data and Thumbnail are base64.
type BlobEntry struct {
	Data      string             `json:"data"`
	Thumbnail string             `json:"thumbnail,omitempty"`
	Metadata  blobstore.Metadata `json:"metadata"`
}

type Snapshot struct {
	Metadata Metadata                      `json:"metadata"`
	Data     map[string][]localdb.Document `json:"data"`
	Blobs    map[string]BlobEntry          `json:"blobs,omitempty"`
}

// Mode decides what Import does with a record whose id already exists.
type Mode string

const (
	ModeSkip      Mode = "skip"
	ModeOverwrite Mode = "overwrite"
	ModeMerge     Mode = "merge"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeSkip, nil
	case ModeSkip, ModeOverwrite, ModeMerge:
		return m, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

type ExportOptions struct {
	// Collections limits the export; empty means every user collection.
	Collections []string
	// IncludeInternal also exports engine bookkeeping collections
	// (sync log, conflicts, search index) when Collections is empty.
	IncludeInternal bool
	IncludeBlobs    bool
}

type ImportOptions struct {
	Mode Mode
}

// ItemError is the failure of a single record or blob.
type ItemError struct {
	Collection string
	ID         string
	Err        error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Collection, e.ID, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

type ImportResult struct {
	Imported int
	Skipped  int
	Blobs    int
	Errors   []ItemError
}
