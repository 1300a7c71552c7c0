// Package ingest bulk-loads dbSNP BED files into a store.
//
// Rows are parsed into variants and written in batches; each batch is one
// transaction. After the last batch the authoritative row count is read
// back from storage and written as the length metadata. A malformed line
// aborts the run, leaving earlier batches committed and the length
// metadata unwritten.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-dbsnp/internal/store"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 1_000_000

// minFields is the number of tab-separated columns a data line must have:
// chrom, start, end, name, score (ignored), strand.
const minFields = 6

// ErrParse matches every *ParseError.
var ErrParse = errors.New("parse error")

// ParseError represents an error parsing a source line.
type ParseError struct {
	Line    int
	Text    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Text)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Result summarizes an ingestion run.
type Result struct {
	Rows    int64 // variants written by this run
	Batches int   // transactions committed
	Skipped int64 // header, comment and blank lines
	Length  int64 // length metadata written at the end
}

type config struct {
	batchSize int
	logger    *zap.Logger
}

// Option configures an ingestion run.
type Option func(*config)

// WithBatchSize sets the number of rows per transaction.
func WithBatchSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithLogger sets the logger for progress messages.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// File ingests the BED file at path ("-" for stdin) into h.
func File(ctx context.Context, h *store.Handle, path string, opts ...Option) (Result, error) {
	rc, err := Open(path)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	res, err := Reader(ctx, h, rc, opts...)
	if err != nil {
		return res, fmt.Errorf("ingest %s: %w", path, err)
	}
	return res, nil
}

// Reader ingests BED rows read from r into h.
func Reader(ctx context.Context, h *store.Handle, r io.Reader, opts ...Option) (Result, error) {
	cfg := config{batchSize: DefaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if h.Remote() {
		return Result{}, fmt.Errorf("%w: %s is read-only", store.ErrRemoteInitialization, h.Path())
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var res Result
	batch := make([]variant.Variant, 0, min(cfg.batchSize, 1<<16))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("write batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.Rows += int64(len(batch))
		cfg.logger.Info("wrote batch",
			zap.Int("batch", res.Batches),
			zap.Int("size", len(batch)),
			zap.Int64("rows", res.Rows))
		batch = batch[:0]
		return nil
	}

	br := bufio.NewReader(r)
	lineNumber := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return res, fmt.Errorf("read line %d: %w", lineNumber+1, err)
		}
		if line == "" && err == io.EOF {
			break
		}
		lineNumber++

		if lineNumber%4096 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return res, cerr
			}
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" || isHeader(line) {
			res.Skipped++
		} else {
			v, perr := parseLine(line, lineNumber)
			if perr != nil {
				return res, perr
			}
			batch = append(batch, v)
			if len(batch) >= cfg.batchSize {
				if ferr := flush(); ferr != nil {
					return res, ferr
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	if err := flush(); err != nil {
		return res, err
	}

	count, err := h.CountRows(ctx)
	if err != nil {
		return res, err
	}
	if err := h.WriteLength(ctx, count); err != nil {
		return res, err
	}
	res.Length = count

	cfg.logger.Info("ingestion complete",
		zap.Int64("rows", res.Rows),
		zap.Int("batches", res.Batches),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("length", count))
	return res, nil
}

// isHeader reports whether line is one of the UCSC BED header forms: a
// "track" line, a "browser" line or a "#" comment.
func isHeader(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	first, _, _ := strings.Cut(line, "\t")
	first, _, _ = strings.Cut(first, " ")
	return first == "track" || first == "browser"
}

func parseLine(line string, lineNumber int) (variant.Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < minFields {
		return variant.Variant{}, &ParseError{
			Line:    lineNumber,
			Text:    line,
			Message: fmt.Sprintf("expected at least %d tab-separated fields, found %d", minFields, len(fields)),
		}
	}
	v, err := variant.FromFields(fields[:minFields])
	if err != nil {
		return variant.Variant{}, &ParseError{Line: lineNumber, Text: line, Message: err.Error()}
	}
	return v, nil
}
