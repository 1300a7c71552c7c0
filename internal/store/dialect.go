package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// Table and index names. They match databases built by earlier dbSNP tooling.
const (
	VariantTable   = "dbSNP"
	MetadataTable  = "dbInfo"
	ChromStartIdx  = "chrom_start_index"
	variantColumns = `id, name, chrom, start, "end", strand`
	insertColumns  = `name, chrom, start, "end", strand`
)

// DefaultEngine is used when no engine is configured and it is available.
const DefaultEngine = "duckdb"

// dialect adapts the schema and the bulk insert path to one storage engine.
type dialect interface {
	// Name is the engine name used in configuration and connection strings.
	Name() string
	// Driver is the database/sql driver name.
	Driver() string
	DSN(path string, readOnly bool) string
	Schema() []string
	// IndexHint is placed after the table name to force chrom_start_index.
	IndexHint() string
	TableExists(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error)
	// BulkPragmas are executed on the connection before a batch insert.
	BulkPragmas() []string
	InsertBatch(ctx context.Context, conn *sqlx.Conn, batch []variant.Variant) error
	Checkpoint() string
}

var dialects = map[string]dialect{}

func register(d dialect) {
	dialects[d.Name()] = d
}

// Engines returns the names of the engines compiled into the binary.
func Engines() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupDialect(name string) (dialect, error) {
	if name == "" {
		if _, ok := dialects[DefaultEngine]; ok {
			name = DefaultEngine
		} else {
			name = "sqlite"
		}
	}
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown engine %q (available: %v)", ErrConfiguration, name, Engines())
	}
	return d, nil
}

// indexDDL is shared by both engines.
var indexDDL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ix_dbSNP_name ON dbSNP (name)`,
	`CREATE INDEX IF NOT EXISTS ix_dbSNP_chrom ON dbSNP (chrom)`,
	`CREATE INDEX IF NOT EXISTS ix_dbSNP_start ON dbSNP (start)`,
	`CREATE INDEX IF NOT EXISTS ix_dbSNP_end ON dbSNP ("end")`,
	`CREATE INDEX IF NOT EXISTS ix_dbSNP_strand ON dbSNP (strand)`,
	`CREATE INDEX IF NOT EXISTS chrom_start_index ON dbSNP (chrom, start)`,
}
