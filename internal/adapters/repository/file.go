package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPermission  = 0o755
	filePermission = 0o644
)

// fileBackend keeps one JSON document per snapshot name under dir:
//
//	<dir>/<name>.json
//
// Writes go to a temp file in the same directory which is synced and renamed
// over the destination, so a crash never leaves a truncated document behind.
type fileBackend struct {
	dir string
}

// NewFileBackend returns a Backend rooted at dir, creating it if needed.
func NewFileBackend(dir string) (Backend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("%w: create state dir: %v", ErrStorage, err)
	}
	return &fileBackend{dir: dir}, nil
}

func (b *fileBackend) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return filepath.Join(b.dir, name+".json"), nil
}

func (b *fileBackend) Get(_ context.Context, name string) ([]byte, error) {
	p, err := b.path(name)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNotExist
	}
	return body, err
}

func (b *fileBackend) Put(_ context.Context, name string, body []byte) (err error) {
	p, err := b.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(body); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), filePermission); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (b *fileBackend) Close() error { return nil }
