// Package store binds a logical (location, version) pair to a concrete dbSNP
// database file and mediates all access to it. DuckDB is the default engine;
// SQLite is available for databases built by earlier dbSNP tooling.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/inodb/vibe-dbsnp/internal/remote"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// State is the lifecycle state of a backing store.
type State int

const (
	// Unbound: no backing file or no schema.
	Unbound State = iota
	// Initialized: schema created, no committed length metadata.
	Initialized
	// Populated: length metadata present, queryable.
	Populated
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Initialized:
		return "initialized"
	case Populated:
		return "populated"
	}
	return "unknown"
}

// dbFileExts are suffixes that indicate a location names a database file
// rather than a directory.
var dbFileExts = []string{".db", ".duckdb", ".sqlite", ".sqlite3"}

// FileName returns the backing file name for a database version.
func FileName(version int) string {
	return fmt.Sprintf("dbsnp%d.db", version)
}

// Option configures a Handle.
type Option func(*Handle)

// WithEngine selects the storage engine ("duckdb" or "sqlite").
func WithEngine(name string) Option {
	return func(h *Handle) { h.engine = name }
}

// WithLogger sets the logger for informational messages.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handle) { h.logger = l }
}

// WithCacheDir sets the directory remote databases are downloaded into.
func WithCacheDir(dir string) Option {
	return func(h *Handle) { h.cacheDir = dir }
}

// WithRemoteConfig sets the credentials and endpoint for remote locations.
func WithRemoteConfig(cfg remote.Config) Option {
	return func(h *Handle) { h.remoteCfg = cfg }
}

// WithMirror overrides the mirror used for a remote location.
func WithMirror(m remote.Mirror) Option {
	return func(h *Handle) { h.mirror = m }
}

// Handle is a connection to one version of the dbSNP database.
type Handle struct {
	location string
	version  int
	engine   string
	dialect  dialect
	logger   *zap.Logger

	// dir is the local directory; path is the local backing file. For remote
	// handles path is the cached copy.
	dir  string
	path string

	remoteURL *remote.URL
	remoteCfg remote.Config
	mirror    remote.Mirror
	cacheDir  string

	mu     sync.Mutex
	db     *sqlx.DB
	length *int64 // nil until resolved
}

// Open binds a handle to location and version. location is a directory,
// an engine connection string (duckdb:///dir, sqlite:///dir) or a remote
// location (s3://bucket/prefix, minio://host/bucket/prefix, file:///dir).
// It must not name the database file itself. No file is created.
func Open(ctx context.Context, location string, version int, opts ...Option) (*Handle, error) {
	h := &Handle{
		location: location,
		version:  version,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if version <= 0 {
		return nil, fmt.Errorf("%w: version must be positive, got %d", ErrConfiguration, version)
	}
	trimmed := strings.TrimRight(location, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty location", ErrConfiguration)
	}
	for _, ext := range dbFileExts {
		if strings.HasSuffix(strings.ToLower(trimmed), ext) {
			return nil, fmt.Errorf("%w: %q names a database file; specify the directory and version instead",
				ErrConfiguration, location)
		}
	}

	if remote.IsRemote(trimmed) {
		if err := h.bindRemote(ctx, trimmed); err != nil {
			return nil, err
		}
	} else if err := h.bindLocal(trimmed); err != nil {
		return nil, err
	}

	d, err := lookupDialect(h.engine)
	if err != nil {
		return nil, err
	}
	h.dialect = d
	h.engine = d.Name()
	return h, nil
}

func (h *Handle) bindLocal(location string) error {
	dir := location
	for _, name := range []string{"duckdb", "sqlite"} {
		if rest, ok := strings.CutPrefix(location, name+"://"); ok {
			h.engine = name
			dir = rest
			if dir == "" {
				dir = "/"
			}
			break
		}
	}
	if scheme, _, ok := strings.Cut(dir, "://"); ok {
		return fmt.Errorf("%w: unsupported scheme %q in %q", ErrConfiguration, scheme, location)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %v", ErrConfiguration, location, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfiguration, location)
	}
	h.dir = abs
	h.path = filepath.Join(abs, FileName(h.version))
	return nil
}

func (h *Handle) bindRemote(ctx context.Context, location string) error {
	u, err := remote.Parse(location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	h.remoteURL = &u

	if h.mirror == nil {
		m, err := remote.New(ctx, u, h.remoteCfg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		h.mirror = m
	}

	if h.cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("%w: no cache directory for remote database: %v", ErrConfiguration, err)
		}
		h.cacheDir = filepath.Join(base, "dbsnp")
	}
	h.dir = filepath.Join(h.cacheDir, u.Scheme, u.Host, u.Bucket, filepath.FromSlash(u.Prefix))
	h.path = filepath.Join(h.dir, FileName(h.version))
	return nil
}

// Version returns the dbSNP version the handle is bound to.
func (h *Handle) Version() int { return h.version }

// Engine returns the storage engine name.
func (h *Handle) Engine() string { return h.engine }

// Remote reports whether the handle is bound to a remote store.
func (h *Handle) Remote() bool { return h.remoteURL != nil }

// Path returns the backing file: a local path, or the remote object URL.
func (h *Handle) Path() string {
	if h.remoteURL != nil {
		return h.remoteURL.String() + "/" + FileName(h.version)
	}
	return h.path
}

// LocalPath returns the file opened by the engine. For remote handles this
// is the cached copy.
func (h *Handle) LocalPath() string { return h.path }

// IndexHint returns the clause forcing the (chrom, start) index, or "".
func (h *Handle) IndexHint() string { return h.dialect.IndexHint() }

func (h *Handle) remoteKey() string {
	return h.remoteURL.Key(FileName(h.version))
}

// Exists reports whether the backing file is present.
func (h *Handle) Exists(ctx context.Context) (bool, error) {
	if h.remoteURL != nil {
		_, err := h.mirror.Stat(ctx, h.remoteKey())
		if errors.Is(err, remote.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	return fileExists(h.path)
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// connect returns the shared connection pool, opening it on first use.
// Without create, a missing backing file is ErrNotInitialized.
func (h *Handle) connect(ctx context.Context, create bool) (*sqlx.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return h.db, nil
	}

	readOnly := false
	if h.remoteURL != nil {
		if err := h.fetch(ctx); err != nil {
			return nil, err
		}
		readOnly = true
	} else if !create {
		ok, err := fileExists(h.path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNotInitialized, h.path)
		}
	}

	db, err := sqlx.Open(h.dialect.Driver(), h.dialect.DSN(h.path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", h.engine, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s %s: %w", h.engine, h.path, err)
	}
	h.db = db
	return db, nil
}

// WithConn runs fn on a dedicated connection and releases it on every path.
func (h *Handle) WithConn(ctx context.Context, fn func(*sqlx.Conn) error) error {
	db, err := h.connect(ctx, false)
	if err != nil {
		return err
	}
	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	return fn(conn)
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including on panic.
func (h *Handle) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return h.WithConn(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Initialize deletes any existing backing file and creates a fresh schema.
// confirmed must be true; asking the user is the caller's job.
func (h *Handle) Initialize(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if h.remoteURL != nil {
		return fmt.Errorf("%w: %s (specify the database by local directory)", ErrRemoteInitialization, h.Path())
	}

	h.mu.Lock()
	if h.db != nil {
		h.db.Close()
		h.db = nil
	}
	h.length = nil
	for _, p := range []string{h.path, h.path + ".wal", h.path + "-journal", h.path + "-wal", h.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.mu.Unlock()
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	h.mu.Unlock()

	db, err := h.connect(ctx, true)
	if err != nil {
		return err
	}
	for _, stmt := range h.dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	h.logger.Info("initialized database",
		zap.String("path", h.path),
		zap.String("engine", h.engine),
		zap.Int("version", h.version))
	return nil
}

// Length returns the total variant count from the length metadata. The
// value is resolved once per handle; failures are not cached.
func (h *Handle) Length(ctx context.Context) (int64, error) {
	h.mu.Lock()
	cached := h.length
	h.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	n, err := h.resolveLength(ctx)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	h.length = &n
	h.mu.Unlock()
	return n, nil
}

func (h *Handle) resolveLength(ctx context.Context) (int64, error) {
	var value string
	err := h.WithConn(ctx, func(conn *sqlx.Conn) error {
		ok, err := h.dialect.TableExists(ctx, conn, MetadataTable)
		if err != nil {
			return fmt.Errorf("check schema: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s has no schema", ErrNotInitialized, h.Path())
		}

		var values []string
		if err := conn.SelectContext(ctx, &values,
			`SELECT value FROM dbInfo WHERE name = ?`, variant.LengthKey); err != nil {
			return fmt.Errorf("query length: %w", err)
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: %s has no length metadata", ErrNotInitialized, h.Path())
		}
		value = values[0]
		return nil
	})
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse length %q: %w", value, err)
	}
	if n < 0 {
		n = -n
	}
	return n, nil
}

// State reports where the store is in its lifecycle.
func (h *Handle) State(ctx context.Context) (State, error) {
	ok, err := h.Exists(ctx)
	if err != nil || !ok {
		return Unbound, err
	}

	var hasSchema bool
	if err := h.WithConn(ctx, func(conn *sqlx.Conn) error {
		hasSchema, err = h.dialect.TableExists(ctx, conn, VariantTable)
		return err
	}); err != nil {
		return Unbound, err
	}
	if !hasSchema {
		return Unbound, nil
	}

	if _, err := h.Length(ctx); err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return Initialized, nil
		}
		return Unbound, err
	}
	return Populated, nil
}

// Describe returns "dbSNP<Version=150,Length=N>", with Length=? when the
// store is not populated.
func (h *Handle) Describe(ctx context.Context) string {
	length := "?"
	if n, err := h.Length(ctx); err == nil {
		length = strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("dbSNP<Version=%d,Length=%s>", h.version, length)
}

func (h *Handle) String() string {
	return fmt.Sprintf("dbSNP<Version=%d,Path=%s>", h.version, h.Path())
}

// Close closes the connection pool. The handle may be reused afterwards.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
