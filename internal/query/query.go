// Package query reads variants from a populated dbSNP store.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-dbsnp/internal/chrom"
	"github.com/inodb/vibe-dbsnp/internal/store"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// DefaultChunkSize bounds the number of values bound into one IN list.
// It stays under SQLite's historical 999 host parameter limit.
const DefaultChunkSize = 990

// DefaultConcurrency is the number of per-chromosome queries run at once.
const DefaultConcurrency = 4

// Points is a chromosome and the start coordinates to look up on it.
type Points struct {
	Chrom  string
	Starts []int64
}

// Window is an inclusive range of start coordinates.
type Window struct {
	Start int64
	End   int64
}

// Engine runs lookups against a store handle.
type Engine struct {
	h           *store.Handle
	chunkSize   int
	concurrency int
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the maximum number of values per IN list.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithConcurrency sets how many chromosomes are queried in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the random source used by SampleRandom.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// New creates a query engine reading through h.
func New(h *store.Handle, opts ...Option) *Engine {
	e := &Engine{
		h:           h,
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return e
}

// requirePopulated fails with store.ErrNotInitialized until an ingestion
// run has written the length metadata.
func (e *Engine) requirePopulated(ctx context.Context) error {
	_, err := e.h.Length(ctx)
	return err
}

// indexed returns the variant SELECT forced onto the (chrom, start) index.
func (e *Engine) indexed() string {
	if hint := e.h.IndexHint(); hint != "" {
		return store.SelectVariants + " " + hint
	}
	return store.SelectVariants
}

// selectIn runs query, expanding slice arguments into IN lists, and
// appends the rows to dst.
func (e *Engine) selectIn(ctx context.Context, dst *[]variant.Variant, query string, args ...any) error {
	return e.h.WithConn(ctx, func(conn *sqlx.Conn) error {
		q, qargs, err := sqlx.In(query, args...)
		if err != nil {
			return err
		}
		var rows []variant.Variant
		if err := conn.SelectContext(ctx, &rows, conn.Rebind(q), qargs...); err != nil {
			return err
		}
		*dst = append(*dst, rows...)
		return nil
	})
}

// LookupByIDs returns the variants named by ids. Every id must carry the
// "rs" prefix. Result order is unspecified and unknown ids are omitted.
func (e *Engine) LookupByIDs(ctx context.Context, ids ...string) ([]variant.Variant, error) {
	for _, id := range ids {
		if !variant.ValidRSID(id) {
			return nil, fmt.Errorf("%w: %q is not an rs identifier", store.ErrInvalidArgument, id)
		}
	}
	if err := e.requirePopulated(ctx); err != nil {
		return nil, err
	}

	var out []variant.Variant
	for chunk := range slices.Chunk(ids, e.chunkSize) {
		if err := e.selectIn(ctx, &out, store.SelectVariants+` WHERE name IN (?)`, chunk); err != nil {
			return nil, fmt.Errorf("lookup ids: %w", err)
		}
	}
	e.logger.Debug("looked up ids", zap.Int("ids", len(ids)), zap.Int("found", len(out)))
	return out, nil
}

// LookupByPoint returns the first variant at chrom:start, optionally also
// matching end, or nil when there is none.
func (e *Engine) LookupByPoint(ctx context.Context, chromosome string, start int64, end *int64) (*variant.Variant, error) {
	if chromosome == "" {
		return nil, fmt.Errorf("%w: empty chromosome", store.ErrInvalidArgument)
	}
	if err := e.requirePopulated(ctx); err != nil {
		return nil, err
	}

	query := e.indexed() + ` WHERE chrom = ? AND start = ?`
	args := []any{variant.NormalizeChrom(chromosome), start}
	if end != nil {
		query += ` AND "end" = ?`
		args = append(args, *end)
	}
	query += ` ORDER BY id LIMIT 1`

	var v variant.Variant
	err := e.h.WithConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &v, conn.Rebind(query), args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s:%d: %w", chromosome, start, err)
	}
	return &v, nil
}

// LookupByPoints returns the variants starting at the given coordinates.
// Groups are visited in the order given; groups whose chromosomes
// normalize to the same label are merged into the first of them.
func (e *Engine) LookupByPoints(ctx context.Context, points []Points) ([]variant.Variant, error) {
	var groups []Points
	seen := make(map[string]int, len(points))
	for _, p := range points {
		if p.Chrom == "" {
			return nil, fmt.Errorf("%w: empty chromosome", store.ErrInvalidArgument)
		}
		c := variant.NormalizeChrom(p.Chrom)
		if i, ok := seen[c]; ok {
			groups[i].Starts = append(groups[i].Starts, p.Starts...)
			continue
		}
		seen[c] = len(groups)
		groups = append(groups, Points{Chrom: c, Starts: slices.Clone(p.Starts)})
	}
	if err := e.requirePopulated(ctx); err != nil {
		return nil, err
	}

	query := e.indexed() + ` WHERE chrom = ? AND start IN (?)`
	results, err := e.fanOut(ctx, len(groups), func(ctx context.Context, i int) ([]variant.Variant, error) {
		g := groups[i]
		var rows []variant.Variant
		for chunk := range slices.Chunk(g.Starts, e.chunkSize) {
			if err := e.selectIn(ctx, &rows, query, g.Chrom, chunk); err != nil {
				return nil, fmt.Errorf("lookup points on %s: %w", g.Chrom, err)
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return concat(results), nil
}

// LookupByRange returns the variants whose start falls inside each window,
// inclusive of both bounds. Chromosomes are visited in rank order and each
// window is ordered by start. A window with Start > End matches nothing.
func (e *Engine) LookupByRange(ctx context.Context, windows map[string]Window) ([]variant.Variant, error) {
	if windows == nil {
		return nil, fmt.Errorf("%w: no windows", store.ErrInvalidArgument)
	}

	type window struct {
		chrom string
		Window
	}
	ranked := make([]window, 0, len(windows))
	seen := make(map[string]string, len(windows))
	for key, w := range windows {
		if key == "" {
			return nil, fmt.Errorf("%w: empty chromosome", store.ErrInvalidArgument)
		}
		c := variant.NormalizeChrom(key)
		if prev, ok := seen[c]; ok {
			return nil, fmt.Errorf("%w: %q and %q name the same chromosome", store.ErrInvalidArgument, prev, key)
		}
		seen[c] = key
		ranked = append(ranked, window{chrom: c, Window: w})
	}
	slices.SortFunc(ranked, func(a, b window) int { return chrom.Compare(a.chrom, b.chrom) })

	if err := e.requirePopulated(ctx); err != nil {
		return nil, err
	}

	query := e.indexed() + ` WHERE chrom = ? AND start BETWEEN ? AND ? ORDER BY start`
	results, err := e.fanOut(ctx, len(ranked), func(ctx context.Context, i int) ([]variant.Variant, error) {
		w := ranked[i]
		var rows []variant.Variant
		if err := e.selectIn(ctx, &rows, query, w.chrom, w.Start, w.End); err != nil {
			return nil, fmt.Errorf("lookup range %s:%d-%d: %w", w.chrom, w.Start, w.End, err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return concat(results), nil
}

// SampleRandom draws count ids uniformly from [1, length] with replacement
// and returns the variants they name. Repeated draws are fetched once, so
// fewer than count rows may come back.
func (e *Engine) SampleRandom(ctx context.Context, count int) ([]variant.Variant, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: sample count %d", store.ErrInvalidArgument, count)
	}
	length, err := e.h.Length(ctx)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	if count == 1 {
		id := e.draw(length)
		var v variant.Variant
		err := e.h.WithConn(ctx, func(conn *sqlx.Conn) error {
			return conn.GetContext(ctx, &v, conn.Rebind(store.SelectVariants+` WHERE id = ?`), id)
		})
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sample id %d: %w", id, err)
		}
		return []variant.Variant{v}, nil
	}

	drawn := roaring64.New()
	for range count {
		drawn.Add(uint64(e.draw(length)))
	}
	ids := make([]int64, 0, drawn.GetCardinality())
	it := drawn.Iterator()
	for it.HasNext() {
		ids = append(ids, int64(it.Next()))
	}

	var out []variant.Variant
	for chunk := range slices.Chunk(ids, e.chunkSize) {
		if err := e.selectIn(ctx, &out, store.SelectVariants+` WHERE id IN (?)`, chunk); err != nil {
			return nil, fmt.Errorf("sample: %w", err)
		}
	}
	e.logger.Debug("sampled variants",
		zap.Int("count", count),
		zap.Uint64("distinct", drawn.GetCardinality()),
		zap.Int("found", len(out)))
	return out, nil
}

// draw returns a uniform id in [1, length].
func (e *Engine) draw(length int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Int64N(length) + 1
}

// fanOut runs fn for 0..n-1 with bounded concurrency and returns the
// results indexed by i.
func (e *Engine) fanOut(ctx context.Context, n int, fn func(context.Context, int) ([]variant.Variant, error)) ([][]variant.Variant, error) {
	results := make([][]variant.Variant, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range n {
		g.Go(func() error {
			rows, err := fn(gctx, i)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func concat(results [][]variant.Variant) []variant.Variant {
	var n int
	for _, r := range results {
		n += len(r)
	}
	out := make([]variant.Variant, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
