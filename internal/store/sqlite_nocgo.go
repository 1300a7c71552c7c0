//go:build !cgo

package store

// If cgo is not enabled, we will use the modernc.org/sqlite non-cgo sqlite
// driver. DuckDB requires cgo, so this is the only engine in such builds.

import (
	_ "modernc.org/sqlite"
)

func init() {
	register(sqliteDialect{driver: "sqlite"})
}
