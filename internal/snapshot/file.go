package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/filex"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Encode writes snap as indented JSON, gzip-compressed when compress is set.
func Encode(w io.Writer, snap *Snapshot, compress bool) error {
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads a snapshot, plain or gzip-compressed.
func Decode(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: malformed snapshot: %v", common.ErrorValidation, err)
	}
	return &snap, nil
}

// WriteFile atomically replaces path with snap. Paths ending in .gz are
// compressed.
func WriteFile(path string, snap *Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, strings.HasSuffix(path, ".gz")); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return filex.WriteFileAtomic(path, buf.Bytes(), 0o600)
}

func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}
