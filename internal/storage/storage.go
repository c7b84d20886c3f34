// Package storage provides the upload archive for HomeworkAI.
//
// Images attached to chat turns are archived out-of-band after the turn
// completes, keyed by user and date, so abuse reports and safety reviews
// can recover what a student actually sent. Two backends exist:
// - LocalArchive: filesystem storage for development
// - R2Archive: Cloudflare R2 (S3-compatible) storage for production
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive defines the interface for upload archival.
//
// All methods are context-aware for timeout and cancellation support.
type Archive interface {
	// Put stores data at the specified key with the given content type.
	// Existing objects at the same key are overwritten.
	Put(ctx context.Context, key string, data io.Reader, contentType string) error

	// Delete removes the object at the specified key.
	// Idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadKey builds the archive key for a chat image upload:
// uploads/<user-id>/<date>/<upload-id>.<ext>
func UploadKey(userID uuid.UUID, at time.Time, mimeType string) string {
	ext := "bin"
	if idx := strings.LastIndex(mimeType, "/"); idx >= 0 && idx < len(mimeType)-1 {
		ext = mimeType[idx+1:]
	}
	return fmt.Sprintf("uploads/%s/%s/%s.%s",
		userID, at.UTC().Format("2006-01-02"), uuid.New(), ext)
}

// LocalConfig holds configuration for local filesystem archival.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 archival.
type R2Config struct {
	// AccountID is the Cloudflare account ID; the endpoint URL is
	// derived from it.
	AccountID string

	// AccessKeyID is the R2 API access key ID.
	AccessKeyID string

	// SecretAccessKey is the R2 API secret key.
	SecretAccessKey string

	// BucketName is the name of the R2 bucket to use.
	BucketName string
}

// Sentinel errors for archive operations.
var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned when a key contains forbidden characters
	// (e.g. path traversal attempts like "../").
	ErrInvalidKey = errors.New("invalid storage key")
)

// StorageError wraps archive operation errors with key context.
// It supports errors.Is via Unwrap.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// validateKey rejects keys that could escape the archive root.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
