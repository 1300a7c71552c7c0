package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// SelectVariants is the column list matching variant.Variant's db tags.
const SelectVariants = `SELECT ` + variantColumns + ` FROM ` + VariantTable

func (h *Handle) checkWritable() error {
	if h.remoteURL != nil {
		return fmt.Errorf("%w: %s is read-only", ErrRemoteInitialization, h.Path())
	}
	return nil
}

// InsertBatch writes batch as one transactional bulk insert. Ids are
// assigned by the engine.
func (h *Handle) InsertBatch(ctx context.Context, batch []variant.Variant) error {
	if len(batch) == 0 {
		return nil
	}
	if err := h.checkWritable(); err != nil {
		return err
	}

	return h.WithConn(ctx, func(conn *sqlx.Conn) error {
		for _, pragma := range h.dialect.BulkPragmas() {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				return fmt.Errorf("set pragma: %w", err)
			}
		}
		return h.dialect.InsertBatch(ctx, conn, batch)
	})
}

// CountRows returns the authoritative number of stored variants.
func (h *Handle) CountRows(ctx context.Context) (int64, error) {
	var n int64
	err := h.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+VariantTable)
	})
	if err != nil {
		return 0, fmt.Errorf("count variants: %w", err)
	}
	return n, nil
}

// WriteLength stores n as the length metadata and refreshes the cached value.
func (h *Handle) WriteLength(ctx context.Context, n int64) error {
	if err := h.checkWritable(); err != nil {
		return err
	}

	value := strconv.FormatInt(n, 10)
	err := h.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE dbInfo SET value = ? WHERE name = ?`, value, variant.LengthKey)
		if err != nil {
			return err
		}
		if updated, err := res.RowsAffected(); err == nil && updated > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO dbInfo (name, value) VALUES (?, ?)`, variant.LengthKey, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("write length: %w", err)
	}

	h.mu.Lock()
	h.length = &n
	h.mu.Unlock()
	return nil
}

// Metadata returns every dbInfo row ordered by name.
func (h *Handle) Metadata(ctx context.Context) ([]variant.Metadata, error) {
	var rows []variant.Metadata
	err := h.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.SelectContext(ctx, &rows, `SELECT name, value FROM dbInfo ORDER BY name`)
	})
	if err != nil {
		return nil, fmt.Errorf("query metadata: %w", err)
	}
	return rows, nil
}
