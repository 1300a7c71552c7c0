//go:build cgo

package store

// If cgo is enabled, we will use the mattn cgo sqlite3 driver. It is faster
// than the modernc sqlite driver.

import (
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	register(sqliteDialect{driver: "sqlite3"})
}
