package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LocalArchive implements Archive on the local filesystem.
//
// Path traversal is prevented by validateKey plus a resolved-path check
// against the base directory.
type LocalArchive struct {
	basePath string
	logger   *slog.Logger
}

// NewLocalArchive creates a LocalArchive, creating the base directory if
// it doesn't exist.
func NewLocalArchive(cfg LocalConfig, logger *slog.Logger) (*LocalArchive, error) {
	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local upload archive", "base_path", absPath)

	return &LocalArchive{basePath: absPath, logger: logger}, nil
}

func (a *LocalArchive) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := a.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	file, err := os.Create(path)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer file.Close()

	written, err := io.Copy(file, data)
	if err != nil {
		os.Remove(path)
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to write file: %w", err)}
	}

	a.logger.Debug("archived upload", "key", key, "size", written, "content_type", contentType)
	return nil
}

func (a *LocalArchive) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := a.resolvePath(key)
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

func (a *LocalArchive) Exists(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	path, err := a.resolvePath(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &StorageError{Op: "Exists", Key: key, Err: err}
}

// resolvePath maps a key to an absolute path under the base directory,
// rejecting anything that resolves outside it.
func (a *LocalArchive) resolvePath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	path := filepath.Join(a.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(path, a.basePath+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return path, nil
}
