package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultLocalDir is where deposit proofs are written by default.
const DefaultLocalDir = "uploads/userDeposit"

// LocalSink writes files to a directory as <unix-ms><ext>.
type LocalSink struct {
	dir string
	now func() time.Time
}

// NewLocalSink creates dir if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		dir = DefaultLocalDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalSink{dir: dir, now: time.Now}, nil
}

// Save writes r to a new file and returns its path.
func (s *LocalSink) Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, path, err := s.create(extension(filename))
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmptyUpload
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}

	return path, nil
}

// create opens a fresh file. Names from the same millisecond get a numeric
// suffix.
func (s *LocalSink) create(ext string) (*os.File, string, error) {
	base := strconv.FormatInt(s.now().UnixMilli(), 10)

	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(s.dir, name+ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create upload file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create upload file: too many uploads at %s", base)
}

// Close implements Sink.
func (s *LocalSink) Close() error { return nil }
