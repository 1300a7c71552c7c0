package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/inodb/vibe-dbsnp/internal/remote"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Fresh reports whether a cached copy still matches the remote object: same
// size and not older than the object.
func (f FileFingerprint) Fresh(obj remote.Object) bool {
	return f.Size == obj.Size && !f.ModTime.Before(obj.ModTime)
}

// fetch makes sure the cached copy of a remote database is present and
// current. Called with h.mu held.
func (h *Handle) fetch(ctx context.Context) error {
	key := h.remoteKey()
	obj, err := h.mirror.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("%w: %s does not exist", ErrNotInitialized, h.Path())
		}
		return err
	}

	if fp, err := StatFile(h.path); err == nil && fp.Fresh(obj) {
		return nil
	}

	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	h.logger.Info("downloading remote database",
		zap.String("from", h.Path()),
		zap.String("to", h.path),
		zap.Int64("bytes", obj.Size))

	n, err := h.mirror.Download(ctx, key, h.path)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", h.Path(), err)
	}
	if n != obj.Size {
		os.Remove(h.path)
		return fmt.Errorf("fetch %s: got %d bytes, want %d", h.Path(), n, obj.Size)
	}
	return nil
}

// Publish uploads a populated local database to m under prefix and returns
// the object key.
func (h *Handle) Publish(ctx context.Context, m remote.Mirror, u remote.URL) (string, error) {
	if h.remoteURL != nil {
		return "", fmt.Errorf("%w: %s is already remote", ErrConfiguration, h.Path())
	}
	if _, err := h.Length(ctx); err != nil {
		return "", err
	}

	if stmt := h.dialect.Checkpoint(); stmt != "" {
		if err := h.WithConn(ctx, func(conn *sqlx.Conn) error {
			_, err := conn.ExecContext(ctx, stmt)
			return err
		}); err != nil {
			return "", fmt.Errorf("checkpoint: %w", err)
		}
	}
	// Release the engine's file lock so the upload sees a consistent file.
	if err := h.Close(); err != nil {
		return "", err
	}

	key := u.Key(FileName(h.version))
	if err := m.Upload(ctx, h.path, key); err != nil {
		return "", err
	}
	h.logger.Info("published database",
		zap.String("path", h.path),
		zap.String("to", u.String()),
		zap.String("key", key))
	return key, nil
}
