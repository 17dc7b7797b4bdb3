package blobstore

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// DetectMIME sniffs the content type, falling back to the file extension
// when sniffing only finds a generic type.
func DetectMIME(data []byte, filename string) string {
	detected := http.DetectContentType(data)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}

	if detected != octetStream && detected != "text/plain" && detected != "application/zip" {
		return detected
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return detected
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return detected
}
