package blobstore

import "time"

type Metadata struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	// Size is the length of the uploaded payload.
	Size int64 `json:"size"`
	// CompressedSize is set when the stored bytes are a re-encoded,
	// smaller version of the upload.
	CompressedSize *int64    `json:"compressedSize,omitempty"`
	UploadedAt     time.Time `json:"uploadedAt"`
	LastAccessed   time.Time `json:"lastAccessed"`
	HasThumbnail   bool      `json:"hasThumbnail"`
}

// StoredSize is the number of bytes actually kept.
func (m Metadata) StoredSize() int64 {
	if m.CompressedSize != nil {
		return *m.CompressedSize
	}
	return m.Size
}

type Blob struct {
	Metadata
	Data      []byte
	Thumbnail []byte
}

type Stats struct {
	Count      int
	TotalSize  int64
	StoredSize int64
	Thumbnails int
	OpenURLs   int
}
