package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocalStore() error: %v", err)
	}

	content := []byte("%PDF-1.4 test")
	if err := store.Put(ctx, "documents/a.pdf", bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	rc, err := store.Get(ctx, "documents/a.pdf")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, content) {
		t.Errorf("Get() = %q, want %q", got, content)
	}

	if err := store.Delete(ctx, "documents/a.pdf"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, "documents/a.pdf"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrBlobNotFound", err)
	}
	if err := store.Delete(ctx, "documents/a.pdf"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalStoreFailedPutLeavesNothing(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, _ := NewLocalStore(root, zap.NewNop())

	reader := io.MultiReader(strings.NewReader("partial"), failingReader{})
	if err := store.Put(ctx, "documents/b.pdf", reader, 100, ""); err == nil {
		t.Fatal("Put() should fail")
	}
	if _, err := store.Get(ctx, "documents/b.pdf"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("partial blob visible: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "documents"))
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d", len(entries))
	}
}

func TestLocalStoreShortWrite(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), zap.NewNop())
	err := store.Put(context.Background(), "documents/c.pdf", strings.NewReader("abc"), 10, "")
	if err == nil {
		t.Fatal("Put() should reject a size mismatch")
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), zap.NewNop())
	err := store.Put(context.Background(), "../escape.pdf", strings.NewReader("x"), 1, "")
	if err == nil {
		t.Fatal("Put() should reject keys escaping the root")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Put(ctx, "k", strings.NewReader("v"), 1, "")
	if store.Len() != 1 {
		t.Fatalf("Len() = %d", store.Len())
	}
	rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	rc.Close()
	_ = store.Delete(ctx, "k")
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get() after delete = %v", err)
	}
}
