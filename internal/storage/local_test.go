package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestArchive(t *testing.T) *LocalArchive {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	archive, err := NewLocalArchive(LocalConfig{BasePath: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("NewLocalArchive() error: %v", err)
	}
	return archive
}

func TestLocalArchive_PutExistsDelete(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	key := UploadKey(uuid.New(), time.Now(), "image/jpeg")

	if err := archive.Put(ctx, key, strings.NewReader("jpeg bytes"), "image/jpeg"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	exists, err := archive.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("expected object to exist after Put")
	}

	if err := archive.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	exists, err = archive.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists() after delete error: %v", err)
	}
	if exists {
		t.Error("expected object to be gone after Delete")
	}
}

func TestLocalArchive_PutOverwrites(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()
	key := "uploads/u/2026-08-28/a.jpeg"

	if err := archive.Put(ctx, key, strings.NewReader("first"), "image/jpeg"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := archive.Put(ctx, key, strings.NewReader("second"), "image/jpeg"); err != nil {
		t.Fatalf("second Put() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(archive.basePath, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestLocalArchive_DeleteMissingIsIdempotent(t *testing.T) {
	archive := newTestArchive(t)

	if err := archive.Delete(context.Background(), "uploads/u/2026-08-28/missing.jpeg"); err != nil {
		t.Errorf("Delete() of a missing key should be a no-op, got %v", err)
	}
}

func TestLocalArchive_RejectsTraversalKeys(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	keys := []string{
		"../outside.txt",
		"uploads/../../etc/passwd",
		"/etc/passwd",
		"",
	}

	for _, key := range keys {
		if err := archive.Put(ctx, key, strings.NewReader("x"), "text/plain"); err == nil {
			t.Errorf("Put(%q) should be rejected", key)
		}
	}
}

func TestUploadKey(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

	key := UploadKey(userID, at, "image/png")

	if !strings.HasPrefix(key, "uploads/"+userID.String()+"/2026-08-28/") {
		t.Errorf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".png") {
		t.Errorf("expected .png extension, got %s", key)
	}

	if other := UploadKey(userID, at, "image/png"); other == key {
		t.Error("two uploads must never share a key")
	}
}
