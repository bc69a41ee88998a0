package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSConfig configures a Google Cloud Storage sink.
type GCSConfig struct {
	Bucket string

	// Prefix is prepended to object names (default: "deposits")
	Prefix string

	// UploadTimeout bounds a single upload (default: 2m)
	UploadTimeout time.Duration
}

// GCSSink uploads files to a bucket as <prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>.
// Credentials come from Application Default Credentials.
type GCSSink struct {
	client *storage.Client
	config GCSConfig
	now    func() time.Time
}

// NewGCSSink creates the storage client.
func NewGCSSink(ctx context.Context, config GCSConfig) (*GCSSink, error) {
	if config.Bucket == "" {
		return nil, errors.New("upload: gcs bucket is required")
	}
	if config.Prefix == "" {
		config.Prefix = "deposits"
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 2 * time.Minute
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSSink{client: client, config: config, now: time.Now}, nil
}

// Save uploads r and returns its gs:// URI.
func (s *GCSSink) Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.UploadTimeout)
	defer cancel()

	object := s.objectName(filename)

	w := s.client.Bucket(s.config.Bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	n, err := io.Copy(w, r)
	if err == nil && n == 0 {
		err = ErrEmptyUpload
	}
	if err != nil {
		// aborts the upload
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("copy upload to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.config.Bucket, object), nil
}

func (s *GCSSink) objectName(filename string) string {
	return path.Join(
		strings.Trim(s.config.Prefix, "/"),
		s.now().UTC().Format("2006/01/02"),
		uuid.New().String()+extension(filename),
	)
}

// Close closes the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
