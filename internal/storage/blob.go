// Package storage defines where the load phase writes finished records.
// Backends live in the local, gcs and memory subpackages; the frontier
// stores live in postgres and sqlite.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrPathRequired is returned when an object has no path.
var ErrPathRequired = errors.New("object path is required")

// Object describes one blob to write.
type Object struct {
	Path        string
	ContentType string
	// Metadata is attached where the backend supports it (GCS object
	// metadata); other backends ignore it.
	Metadata map[string]string
}

// BlobStore writes objects and returns a URI naming where each landed.
type BlobStore interface {
	PutObject(ctx context.Context, obj Object, r io.Reader) (string, error)
}

// RecordPath builds the object path for a record:
// <prefix>/<runID>/<key>.json. Empty segments are dropped. key must be unique
// per record within a run.
func RecordPath(prefix, runID, key string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{strings.Trim(prefix, "/"), runID, key + ".json"} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// ValidPath rejects empty and escaping paths.
func ValidPath(p string) error {
	clean := path.Clean("/" + strings.TrimSpace(p))
	if strings.TrimSpace(p) == "" || clean == "/" {
		return ErrPathRequired
	}
	if strings.Contains(p, "..") {
		return errors.New("object path must not contain ..")
	}
	return nil
}
