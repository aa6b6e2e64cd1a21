// Package id generates identifiers for documents, sessions and events.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers issued by the server.
const (
	PrefixDocument = "doc"
	PrefixSession  = "ses"
)

// Generate creates a prefixed NanoID, e.g. "ses-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}

// FromKey derives a stable prefixed ID from key, so the same key always
// maps to the same ID. Used for documents imported from manifest files.
func FromKey(prefix, key string) string {
	return prefix + "-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// EventID returns a random UUID for SSE event ids and request correlation.
func EventID() string {
	return uuid.NewString()
}
