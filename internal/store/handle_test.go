package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-dbsnp/internal/remote"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

func forEachEngine(t *testing.T, fn func(t *testing.T, engine string)) {
	t.Helper()
	for _, engine := range Engines() {
		t.Run(engine, func(t *testing.T) { fn(t, engine) })
	}
}

func openHandle(t *testing.T, engine string) *Handle {
	t.Helper()
	h, err := Open(context.Background(), t.TempDir(), 150, WithEngine(engine))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func initHandle(t *testing.T, engine string) *Handle {
	t.Helper()
	h := openHandle(t, engine)
	require.NoError(t, h.Initialize(context.Background(), true))
	return h
}

func testVariants() []variant.Variant {
	return []variant.Variant{
		{Name: "rs564732507", Chrom: "chr7", Start: 1052302, End: 1052303, Strand: "+"},
		{Name: "rs1050043376", Chrom: "chr8", Start: 4330858, End: 4330859, Strand: "-"},
		{Name: "rs747708367", Chrom: "chrX", Start: 95976324, End: 95976325, Strand: "+"},
	}
}

func TestEnginesRegistered(t *testing.T) {
	assert.Contains(t, Engines(), "sqlite")
}

func TestOpenRejectsFileLocation(t *testing.T) {
	dir := t.TempDir()
	for _, loc := range []string{
		filepath.Join(dir, "dbsnp150.db"),
		filepath.Join(dir, "dbsnp150.DB"),
		filepath.Join(dir, "x.duckdb"),
		"sqlite:///" + filepath.Join(dir, "dbsnp.sqlite"),
		"s3://bucket/dbsnp150.db",
	} {
		t.Run(loc, func(t *testing.T) {
			_, err := Open(context.Background(), loc, 150)
			require.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), loc)
		})
	}
}

func TestOpenConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name     string
		location string
		version  int
		opts     []Option
	}{
		{"zero version", dir, 0, nil},
		{"negative version", dir, -1, nil},
		{"empty location", "", 150, nil},
		{"missing directory", filepath.Join(dir, "missing"), 150, nil},
		{"not a directory", file, 150, nil},
		{"unknown engine", dir, 150, []Option{WithEngine("oracle")}},
		{"unknown scheme", "postgres://host/db", 150, nil},
		{"bad remote", "s3:///nobucket", 150, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.location, tt.version, tt.opts...)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestOpenResolvesPath(t *testing.T) {
	dir := t.TempDir()
	h, err := Open(context.Background(), dir+"/", 142, WithEngine("sqlite"))
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, filepath.Join(dir, "dbsnp142.db"), h.Path())
	assert.Equal(t, 142, h.Version())
	assert.Equal(t, "sqlite", h.Engine())
	assert.False(t, h.Remote())
	assert.Equal(t, "INDEXED BY chrom_start_index", h.IndexHint())
}

func TestOpenConnectionString(t *testing.T) {
	dir := t.TempDir()
	h, err := Open(context.Background(), "sqlite://"+dir, 150)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "sqlite", h.Engine())
	assert.Equal(t, filepath.Join(dir, "dbsnp150.db"), h.Path())
}

func TestOpenDoesNotCreateFile(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		h := openHandle(t, engine)
		ok, err := h.Exists(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = h.Length(context.Background())
		assert.ErrorIs(t, err, ErrNotInitialized)

		ok, err = h.Exists(context.Background())
		require.NoError(t, err)
		assert.False(t, ok, "a failed query must not create the file")
	})
}

func TestStateMachine(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := openHandle(t, engine)

		state, err := h.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, Unbound, state)

		require.NoError(t, h.Initialize(ctx, true))
		ok, err := h.Exists(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		state, err = h.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, Initialized, state)

		_, err = h.Length(ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)

		require.NoError(t, h.InsertBatch(ctx, testVariants()))
		require.NoError(t, h.WriteLength(ctx, 3))

		state, err = h.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, Populated, state)
		assert.Equal(t, "populated", state.String())
	})
}

func TestInitializeRequiresConfirmation(t *testing.T) {
	h := openHandle(t, "sqlite")
	err := h.Initialize(context.Background(), false)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	ok, err := h.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInitializeDestroysExisting(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.InsertBatch(ctx, testVariants()))
		require.NoError(t, h.WriteLength(ctx, 3))

		require.NoError(t, h.Initialize(ctx, true))

		n, err := h.CountRows(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		_, err = h.Length(ctx)
		assert.ErrorIs(t, err, ErrNotInitialized, "cached length must be dropped")
	})
}

func TestInsertBatchAssignsIDs(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.InsertBatch(ctx, testVariants()[:2]))
		require.NoError(t, h.InsertBatch(ctx, testVariants()[2:]))

		var rows []variant.Variant
		require.NoError(t, h.WithConn(ctx, func(conn *sqlx.Conn) error {
			return conn.SelectContext(ctx, &rows, SelectVariants+` ORDER BY id`)
		}))
		require.Len(t, rows, 3)
		for i, v := range rows {
			assert.Equal(t, int64(i+1), v.ID)
			assert.Equal(t, testVariants()[i].Name, v.Name)
		}
		assert.Equal(t, "chr7", rows[0].Chrom)
		assert.Equal(t, int64(1052302), rows[0].Start)
		assert.Equal(t, int64(1052303), rows[0].End)
		assert.Equal(t, "+", rows[0].Strand)
	})
}

func TestInsertBatchDuplicateNameRollsBack(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.InsertBatch(ctx, testVariants()[:1]))

		batch := []variant.Variant{
			{Name: "rs1", Chrom: "chr1", Start: 10, End: 11, Strand: "+"},
			{Name: "rs564732507", Chrom: "chr7", Start: 5, End: 6, Strand: "+"},
		}
		assert.Error(t, h.InsertBatch(ctx, batch))

		n, err := h.CountRows(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "failed batch must not leave partial rows")
	})
}

func TestInsertBatchIDsContiguousAfterFailedBatch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.InsertBatch(ctx, testVariants()[:1]))

		dup := []variant.Variant{
			{Name: "rs1", Chrom: "chr1", Start: 10, End: 11, Strand: "+"},
			{Name: "rs564732507", Chrom: "chr7", Start: 5, End: 6, Strand: "+"},
		}
		require.Error(t, h.InsertBatch(ctx, dup))
		require.NoError(t, h.InsertBatch(ctx, testVariants()[1:]))

		var ids []int64
		require.NoError(t, h.WithConn(ctx, func(conn *sqlx.Conn) error {
			return conn.SelectContext(ctx, &ids, `SELECT id FROM dbSNP ORDER BY id`)
		}))
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})
}

func TestInsertBatchUnbound(t *testing.T) {
	h := openHandle(t, "sqlite")
	err := h.InsertBatch(context.Background(), testVariants())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLengthAbsoluteValue(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.WithConn(ctx, func(conn *sqlx.Conn) error {
			_, err := conn.ExecContext(ctx, `INSERT INTO dbInfo (name, value) VALUES ('length', '-5')`)
			return err
		}))

		n, err := h.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})
}

func TestLengthResolvedOncePerHandle(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.WriteLength(ctx, 3))
		require.NoError(t, h.Close())

		// A fresh handle resolves from storage.
		h2, err := Open(ctx, filepath.Dir(h.Path()), 150, WithEngine(engine))
		require.NoError(t, err)
		defer h2.Close()

		n, err := h2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		require.NoError(t, h2.WithConn(ctx, func(conn *sqlx.Conn) error {
			_, err := conn.ExecContext(ctx, `UPDATE dbInfo SET value = '7' WHERE name = 'length'`)
			return err
		}))
		n, err = h2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "length is cached per handle")
	})
}

func TestWriteLengthOverwrites(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.WriteLength(ctx, 2))
		require.NoError(t, h.WriteLength(ctx, 4))

		md, err := h.Metadata(ctx)
		require.NoError(t, err)
		assert.Equal(t, []variant.Metadata{{Name: "length", Value: "4"}}, md)

		n, err := h.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestWithTxRollback(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		insert := `INSERT INTO dbInfo (name, value) VALUES ('build', 'GRCh38')`

		err := h.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, insert); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		assert.Panics(t, func() {
			h.WithTx(ctx, func(tx *sqlx.Tx) error {
				tx.ExecContext(ctx, insert)
				panic("boom")
			})
		})

		md, err := h.Metadata(ctx)
		require.NoError(t, err)
		assert.Empty(t, md)

		require.NoError(t, h.WithTx(ctx, func(tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx, insert)
			return err
		}))
		md, err = h.Metadata(ctx)
		require.NoError(t, err)
		assert.Len(t, md, 1)
	})
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	h := initHandle(t, "sqlite")
	assert.Equal(t, "dbSNP<Version=150,Length=?>", h.Describe(ctx))

	require.NoError(t, h.WriteLength(ctx, 2))
	assert.Equal(t, "dbSNP<Version=150,Length=2>", h.Describe(ctx))
}

func TestRemoteHandle(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engine string) {
		ctx := context.Background()
		h := initHandle(t, engine)
		require.NoError(t, h.InsertBatch(ctx, testVariants()))
		n, err := h.CountRows(ctx)
		require.NoError(t, err)
		require.NoError(t, h.WriteLength(ctx, n))

		mirrorDir := t.TempDir()
		u, err := remote.Parse("file://" + mirrorDir)
		require.NoError(t, err)
		key, err := h.Publish(ctx, remote.NewDir(u.Bucket), u)
		require.NoError(t, err)
		assert.Equal(t, "dbsnp150.db", key)

		location := "file://" + mirrorDir
		r, err := Open(ctx, location, 150, WithEngine(engine), WithCacheDir(t.TempDir()))
		require.NoError(t, err)
		defer r.Close()
		assert.True(t, r.Remote())
		assert.Equal(t, location+"/dbsnp150.db", r.Path())

		ok, err := r.Exists(ctx)
		require.NoError(t, err)
		assert.True(t, ok)

		length, err := r.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), length)
		assert.FileExists(t, r.LocalPath())

		assert.ErrorIs(t, r.Initialize(ctx, true), ErrRemoteInitialization)
		assert.ErrorIs(t, r.InsertBatch(ctx, testVariants()), ErrRemoteInitialization)
		assert.ErrorIs(t, r.WriteLength(ctx, 1), ErrRemoteInitialization)

		missing, err := Open(ctx, location, 151, WithEngine(engine), WithCacheDir(t.TempDir()))
		require.NoError(t, err)
		defer missing.Close()
		ok, err = missing.Exists(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = missing.Length(ctx)
		assert.ErrorIs(t, err, ErrNotInitialized)
	})
}

func TestPublishRequiresPopulated(t *testing.T) {
	h := initHandle(t, "sqlite")
	dir := t.TempDir()
	_, err := h.Publish(context.Background(), remote.NewDir(dir), remote.URL{Scheme: remote.SchemeFile, Bucket: dir})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
