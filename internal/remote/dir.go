package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir is a Mirror backed by a directory, typically a shared network mount.
type Dir struct {
	root string
}

// NewDir creates a directory mirror rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *Dir) Stat(_ context.Context, key string) (Object, error) {
	info, err := os.Stat(d.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("%s is a directory", d.path(key))
	}
	return Object{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (d *Dir) Download(ctx context.Context, key, dst string) (int64, error) {
	if _, err := d.Stat(ctx, key); err != nil {
		return 0, err
	}
	return copyFile(d.path(key), dst)
}

func (d *Dir) Upload(_ context.Context, src, key string) error {
	dst := d.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	_, err := copyFile(src, dst)
	return err
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, os.Rename(tmp, dst)
}
