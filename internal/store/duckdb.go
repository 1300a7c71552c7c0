//go:build cgo

package store

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/jmoiron/sqlx"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// stagingTable receives Appender rows before they are copied into dbSNP.
// Ids are assigned during the copy as MAX(id) plus the row position, so a
// rolled back batch leaves no gap in 1..length.
const stagingTable = "dbSNP_staging"

type duckdbDialect struct{}

func init() {
	register(duckdbDialect{})
}

func (duckdbDialect) Name() string   { return "duckdb" }
func (duckdbDialect) Driver() string { return "duckdb" }

func (duckdbDialect) DSN(path string, readOnly bool) string {
	if readOnly {
		return path + "?access_mode=read_only"
	}
	return path
}

func (duckdbDialect) Schema() []string {
	return append([]string{
		`CREATE TABLE IF NOT EXISTS dbSNP (
			id BIGINT PRIMARY KEY,
			name VARCHAR NOT NULL,
			chrom VARCHAR(4) NOT NULL,
			start BIGINT NOT NULL,
			"end" BIGINT NOT NULL,
			strand VARCHAR(1)
		)`,
		`CREATE TABLE IF NOT EXISTS dbInfo (
			name VARCHAR PRIMARY KEY,
			value VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS dbSNP_staging (
			seq BIGINT,
			name VARCHAR,
			chrom VARCHAR,
			start BIGINT,
			"end" BIGINT,
			strand VARCHAR
		)`,
	}, indexDDL...)
}

// DuckDB has no index hint syntax; its optimizer picks the ART index.
func (duckdbDialect) IndexHint() string { return "" }

func (duckdbDialect) TableExists(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		`SELECT COUNT(*) FROM information_schema.tables WHERE lower(table_name) = lower(?)`, table)
	return n > 0, err
}

func (duckdbDialect) BulkPragmas() []string { return nil }

func (duckdbDialect) Checkpoint() string { return "CHECKPOINT" }

// InsertBatch appends the batch to the staging table with the Appender API,
// then moves it into dbSNP in one transaction.
func (duckdbDialect) InsertBatch(ctx context.Context, conn *sqlx.Conn, batch []variant.Variant) error {
	if _, err := conn.ExecContext(ctx, "DELETE FROM "+stagingTable); err != nil {
		return fmt.Errorf("clear staging table: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", stagingTable)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for i, v := range batch {
		if err := appender.AppendRow(int64(i), v.Name, v.Chrom, v.Start, v.End, v.Strand); err != nil {
			appender.Close()
			return fmt.Errorf("append %s: %w", v.Name, err)
		}
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush appender: %w", err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO dbSNP (`+variantColumns+`)
		SELECT (SELECT COALESCE(MAX(id), 0) FROM dbSNP) + row_number() OVER (ORDER BY seq),
			`+insertColumns+`
		FROM `+stagingTable+` ORDER BY seq`); err != nil {
		return fmt.Errorf("insert variants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+stagingTable); err != nil {
		return fmt.Errorf("clear staging table: %w", err)
	}
	return tx.Commit()
}
