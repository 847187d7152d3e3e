package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"
)

func TestSaveOpenRemove(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key, n, err := store.Save(context.Background(), "uploads/clip.mp4", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "uploads/clip.mp4" || n != 7 {
		t.Fatalf("Save = %q, %d", key, n)
	}

	f, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	_ = f.Close()
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}

	if err := store.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(key); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := store.Open(key); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Open after remove err = %v", err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "   ", "../etc/passwd", "a/../../b", ".."} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("sanitizeKey(%q) expected error", key)
		}
	}
	got, err := sanitizeKey(`\outputs\job.mp4`)
	if err != nil || got != "outputs/job.mp4" {
		t.Fatalf("sanitizeKey = %q, %v", got, err)
	}
}

func TestRemoveOlderThan(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	oldKey, _, _ := store.Save(ctx, "uploads/old.bin", strings.NewReader("x"))
	keptKey, _, _ := store.Save(ctx, "uploads/kept.bin", strings.NewReader("z"))
	_, _, _ = store.Save(ctx, "uploads/new.bin", strings.NewReader("y"))

	past := time.Now().Add(-3 * time.Hour)
	for _, key := range []string{oldKey, keptKey} {
		p, _ := store.Path(key)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	keep := func(key string) bool { return key == "uploads/kept.bin" }
	removed, err := store.RemoveOlderThan("uploads", time.Now().Add(-time.Hour), keep)
	if err != nil {
		t.Fatalf("RemoveOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.Open("uploads/new.bin"); err != nil {
		t.Fatalf("new file should remain: %v", err)
	}
	if f, err := store.Open("uploads/kept.bin"); err != nil {
		t.Fatalf("kept file should remain: %v", err)
	} else {
		_ = f.Close()
	}

	if n, err := store.RemoveOlderThan("missing", time.Now(), nil); err != nil || n != 0 {
		t.Fatalf("missing dir = %d, %v", n, err)
	}
}

func TestPrepareCreatesParentDirectory(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	p, err := store.Prepare("outputs/nested/job-1.mp4")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := os.WriteFile(p, []byte("encoded"), 0o644); err != nil {
		t.Fatalf("write prepared path: %v", err)
	}
	f, err := store.Open("outputs/nested/job-1.mp4")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = f.Close()

	if _, err := store.Prepare("../escape.mp4"); err == nil {
		t.Fatalf("Prepare accepted a key outside the store")
	}
}
