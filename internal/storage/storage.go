package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned by Save when the content exceeds the store's limit.
var ErrTooLarge = errors.New("file exceeds the upload size limit")

// Store keeps uploaded submission files.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) (size int64, err error)
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// Local stores files under a root directory on disk.
type Local struct {
	root     string
	maxBytes int64
}

func NewLocal(root string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: root, maxBytes: maxBytes}, nil
}

func (l *Local) MaxBytes() int64 { return l.maxBytes }

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") || clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Save writes r to key. A partial file is removed when the write fails or the limit is exceeded.
func (l *Local) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := l.path(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	src := r
	if l.maxBytes > 0 {
		src = io.LimitReader(r, l.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && l.maxBytes > 0 && n > l.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(p)
		return 0, err
	}
	return n, nil
}

func (l *Local) Open(key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (l *Local) Remove(key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
