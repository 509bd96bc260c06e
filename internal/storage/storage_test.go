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
)

func TestLocalSaveOpenRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, 1024)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	n, err := store.Save(context.Background(), "apps/a1/doc.pdf", strings.NewReader("%PDF-1.4 hello"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 14 {
		t.Errorf("size = %d, want 14", n)
	}

	rc, err := store.Open("apps/a1/doc.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "%PDF-1.4 hello" {
		t.Errorf("content = %q", got)
	}

	if err := store.Remove("apps/a1/doc.pdf"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove("apps/a1/doc.pdf"); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestLocalSaveTooLarge(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewLocal(dir, 4)

	_, err := store.Save(context.Background(), "big.bin", bytes.NewReader([]byte("12345")))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "big.bin")); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial file left behind: %v", statErr)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), 0)
	if _, err := store.Save(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected an error for a key escaping the root")
	}
}
