// Package remote mirrors version-qualified database files to and from
// object storage. Remote databases are read-only: they are downloaded into a
// local cache before being queried and are never initialized in place.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("remote object not found")

// Supported location schemes.
const (
	SchemeS3    = "s3"
	SchemeMinio = "minio"
	SchemeFile  = "file"
)

// Object describes a stored database file.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Mirror is an object store holding database files.
type Mirror interface {
	// Stat returns the object metadata or ErrNotFound.
	Stat(ctx context.Context, key string) (Object, error)

	// Download copies the object to the local file dst and returns the
	// number of bytes written.
	Download(ctx context.Context, key, dst string) (int64, error)

	// Upload copies the local file src to key.
	Upload(ctx context.Context, src, key string) error
}

// Config holds connection settings shared by the mirror implementations.
// Empty fields fall back to the SDK defaults (environment, shared config).
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// URL is a parsed remote location.
type URL struct {
	Scheme string
	Host   string // MinIO endpoint; empty for s3 and file
	Bucket string // bucket, or the root directory for file
	Prefix string
}

// IsRemote reports whether location names a remote store.
func IsRemote(location string) bool {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		return false
	}
	switch scheme {
	case SchemeS3, SchemeMinio, SchemeFile:
		return true
	}
	return false
}

// Parse parses s3://bucket/prefix, minio://host:port/bucket/prefix and
// file:///dir locations.
func Parse(location string) (URL, error) {
	u, err := url.Parse(location)
	if err != nil {
		return URL{}, fmt.Errorf("parse remote location %q: %w", location, err)
	}
	p := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case SchemeS3:
		if u.Host == "" {
			return URL{}, fmt.Errorf("remote location %q: missing bucket", location)
		}
		return URL{Scheme: SchemeS3, Bucket: u.Host, Prefix: p}, nil
	case SchemeMinio:
		if u.Host == "" {
			return URL{}, fmt.Errorf("remote location %q: missing endpoint", location)
		}
		bucket, prefix, _ := strings.Cut(p, "/")
		if bucket == "" {
			return URL{}, fmt.Errorf("remote location %q: missing bucket", location)
		}
		return URL{Scheme: SchemeMinio, Host: u.Host, Bucket: bucket, Prefix: prefix}, nil
	case SchemeFile:
		if u.Path == "" {
			return URL{}, fmt.Errorf("remote location %q: missing directory", location)
		}
		return URL{Scheme: SchemeFile, Bucket: path.Clean(u.Path)}, nil
	}
	return URL{}, fmt.Errorf("remote location %q: unsupported scheme %q", location, u.Scheme)
}

// Key joins the prefix and a file name into an object key.
func (u URL) Key(name string) string {
	return path.Join(u.Prefix, name)
}

func (u URL) String() string {
	switch u.Scheme {
	case SchemeMinio:
		return fmt.Sprintf("minio://%s/%s", u.Host, path.Join(u.Bucket, u.Prefix))
	case SchemeFile:
		return "file://" + u.Bucket
	}
	return fmt.Sprintf("%s://%s", u.Scheme, path.Join(u.Bucket, u.Prefix))
}

// New creates the Mirror serving u.
func New(ctx context.Context, u URL, cfg Config) (Mirror, error) {
	switch u.Scheme {
	case SchemeS3:
		return NewS3(ctx, u.Bucket, cfg)
	case SchemeMinio:
		if cfg.Endpoint == "" {
			cfg.Endpoint = u.Host
		}
		return NewMinio(u.Bucket, cfg)
	case SchemeFile:
		return NewDir(u.Bucket), nil
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}
