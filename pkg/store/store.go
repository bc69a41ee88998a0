// Package store defines the document-oriented record store the workflow
// engine persists to, and the errors every backend reports.
package store

import (
	"context"
	"fmt"
)

// Document is a flat record body keyed by field name.
type Document map[string]interface{}

// Clone returns a shallow copy of d. A nil document clones to nil.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge copies every field of patch over d and returns d.
func (d Document) Merge(patch Document) Document {
	for k, v := range patch {
		d[k] = v
	}
	return d
}

// String returns the field as a string, formatting non-string values.
// Missing or nil fields return "".
func (d Document) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Record is a document together with its store-assigned identifier.
type Record struct {
	ID   string
	Data Document
}

// Filter is an equality predicate on a single field.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// RecordStore is implemented by every persistence backend.
//
// Implementations must be safe for concurrent use. Each single-document
// operation is atomic; there are no multi-document transactions.
type RecordStore interface {
	// Get returns the document with the given id.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns all records matching every filter. No filters returns
	// the whole collection. An empty result is not an error.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Record, error)

	// Insert stores doc. An empty id asks the store to generate one; an
	// explicit id overwrites any existing document with that id.
	// Returns the id the document was stored under.
	Insert(ctx context.Context, collection, id string, doc Document) (string, error)

	// Update merges fields into an existing document.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, collection, id string, fields Document) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Name returns the backend name used in logs and metrics.
	Name() string

	// Close releases resources held by the store.
	Close() error
}

// MatchesAll reports whether doc satisfies every filter. Values are
// compared by their string form so a numeric 42 matches "42".
func MatchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		if fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}
