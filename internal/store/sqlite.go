package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/inodb/vibe-dbsnp/internal/variant"
)

type sqliteDialect struct {
	driver string
}

func (sqliteDialect) Name() string     { return "sqlite" }
func (d sqliteDialect) Driver() string { return d.driver }

// URI filenames have to begin with 'file:'; see
// https://www.sqlite.org/c3ref/open.html .
func (sqliteDialect) DSN(path string, readOnly bool) string {
	if readOnly {
		return "file:" + path + "?mode=ro"
	}
	return "file:" + path
}

func (sqliteDialect) Schema() []string {
	return append([]string{
		`CREATE TABLE IF NOT EXISTS dbSNP (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR NOT NULL,
			chrom VARCHAR(4) NOT NULL,
			start INTEGER NOT NULL,
			"end" INTEGER NOT NULL,
			strand VARCHAR(1)
		)`,
		`CREATE TABLE IF NOT EXISTS dbInfo (
			name VARCHAR PRIMARY KEY,
			value VARCHAR
		)`,
	}, indexDDL...)
}

func (sqliteDialect) IndexHint() string { return "INDEXED BY " + ChromStartIdx }

func (sqliteDialect) TableExists(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	return n > 0, err
}

func (sqliteDialect) BulkPragmas() []string {
	return []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = 500000",
	}
}

func (sqliteDialect) Checkpoint() string { return "PRAGMA wal_checkpoint(TRUNCATE)" }

func (sqliteDialect) InsertBatch(ctx context.Context, conn *sqlx.Conn, batch []variant.Variant) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO dbSNP (`+insertColumns+`) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range batch {
		if _, err := stmt.ExecContext(ctx, v.Name, v.Chrom, v.Start, v.End, v.Strand); err != nil {
			return fmt.Errorf("insert %s: %w", v.Name, err)
		}
	}
	return tx.Commit()
}
