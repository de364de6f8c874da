// Package storage defines the Storage interface that receives email log archives, and the
// registry of backends (local, s3, azure, gcs) that implement it.
//
// Backends register themselves from an init() function in their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// internal/api blank-imports every backend so the registry is complete at startup.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage is an object store for exported files.
type Storage interface {
	// Upload stores the content of reader at path. size is a hint and may be -1.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download opens the object at path. A missing object yields ErrNotFound.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object at path. Deleting a missing object succeeds.
	Delete(ctx context.Context, path string) error

	// GetURL returns a download URL for path that stops working after ttl.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// URLVerifier is implemented by backends whose download URLs are served by this service
// rather than by the object store itself.
type URLVerifier interface {
	VerifyURL(path, expires, signature string, now time.Time) error
}

// UploadResult describes a stored object.
type UploadResult struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"sha256"`
}

// ReadAll drains reader and returns its content with the hex SHA-256 checksum. Cloud
// backends need the full body up front to set the content length.
func ReadAll(reader io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read data: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// ContentType returns the MIME type stored with an object, derived from its extension.
func ContentType(p string) string {
	switch path.Ext(p) {
	case ".jsonl":
		return "application/x-ndjson"
	case ".pgp":
		return "application/pgp-encrypted"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
