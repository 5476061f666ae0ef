// Package storage holds the object store used for captured stills and for
// the JSON record document.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectStore puts and gets whole objects by key. Put returns the public URL
// of the stored object.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	URL(key string) string
}

// SelfieKey derives the key for a captured still from the capture time and a
// per-user suffix, e.g. "selfies/1718000000000-a@x.com-selfie.jpg".
func SelfieKey(at time.Time, suffix string) string {
	suffix = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(suffix)
	if suffix == "" {
		suffix = "unknown"
	}
	return fmt.Sprintf("selfies/%d-%s-selfie.jpg", at.UnixMilli(), suffix)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
