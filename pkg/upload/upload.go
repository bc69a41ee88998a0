// Package upload stores deposit payment proofs and returns a reference that
// is saved on the transaction record.
package upload

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrEmptyUpload is returned when the uploaded file has no content.
var ErrEmptyUpload = errors.New("upload: empty file")

// Sink persists an uploaded file.
type Sink interface {
	// Save stores the content of r and returns where it went. filename is
	// the client-supplied name; only its extension is kept.
	Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error)

	Close() error
}

// extension returns the lower-cased extension of filename, or "" when it
// is missing or looks unsafe.
func extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
