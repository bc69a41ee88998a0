package store

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const maxIDLength = 250

var collectionPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,62}$`)

// ValidateCollection checks that name is usable as a collection or table name
// on every backend.
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: collection %q", ErrInvalidKey, name)
	}
	return nil
}

// ValidateID checks a document id.
//
// Rules:
// - Non-empty string
// - Maximum length of 250 characters
// - No control characters and no '/'
// - No leading or trailing whitespace
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id too long (max %d characters)", ErrInvalidKey, maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || r == '/' {
			return fmt.Errorf("%w: id contains %q", ErrInvalidKey, r)
		}
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("%w: id has leading or trailing whitespace", ErrInvalidKey)
	}
	return nil
}

// ValidateKey checks both parts of a document address.
func ValidateKey(collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	return ValidateID(id)
}

// KeyPattern builds cache keys for documents.
type KeyPattern struct {
	prefix    string
	separator string
}

// NewKeyPattern creates a new key pattern with the given prefix and separator.
func NewKeyPattern(prefix, separator string) *KeyPattern {
	if separator == "" {
		separator = ":"
	}
	return &KeyPattern{
		prefix:    prefix,
		separator: separator,
	}
}

// Build joins the prefix and parts.
// Example: NewKeyPattern("rec", ":").Build("transactions", "abc") -> "rec:transactions:abc"
func (kp *KeyPattern) Build(parts ...string) string {
	var b strings.Builder
	b.WriteString(kp.prefix)
	for i, part := range parts {
		if i > 0 || kp.prefix != "" {
			b.WriteString(kp.separator)
		}
		b.WriteString(part)
	}
	return b.String()
}

// DocumentKey is the cache key of a single document.
func (kp *KeyPattern) DocumentKey(collection, id string) string {
	return kp.Build(collection, id)
}
