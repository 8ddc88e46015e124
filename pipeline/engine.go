package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dnlglsn/sipl"
)

// MapFunc transforms one chunk. It must not modify its input.
type MapFunc func(ctx context.Context, chunk *sipl.ChunkedArray) (*sipl.ChunkedArray, error)

// Engine maps a function over a chunk collection and collects the
// results. Result order is unspecified.
type Engine interface {
	Map(ctx context.Context, chunks []*sipl.ChunkedArray, fn MapFunc) ([]*sipl.ChunkedArray, error)
}

// EngineOption configures an engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger *zap.Logger
	rng    *rand.Rand
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = orNop(l)
	}
}

// WithShuffle permutes collected results using seed. A shuffling engine
// must not run Map from more than one goroutine at a time.
func WithShuffle(seed int64) EngineOption {
	return func(o *engineOptions) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

func newEngineOptions(opts []EngineOption) engineOptions {
	o := engineOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewEngine builds the engine described by cfg.
func NewEngine(cfg EngineConfig, logger *zap.Logger) Engine {
	opts := []EngineOption{WithLogger(logger)}
	if cfg.Shuffle {
		opts = append(opts, WithShuffle(cfg.Seed))
	}
	if cfg.Workers > 1 {
		return NewConcurrent(cfg.Workers, opts...)
	}
	return NewSequential(opts...)
}

// Sequential runs fn in the calling goroutine, one chunk at a time. It
// checks for cancellation between chunks.
type Sequential struct {
	engineOptions
}

var _ Engine = (*Sequential)(nil)

func NewSequential(opts ...EngineOption) *Sequential {
	return &Sequential{newEngineOptions(opts)}
}

func (e *Sequential) Map(ctx context.Context, chunks []*sipl.ChunkedArray, fn MapFunc) ([]*sipl.ChunkedArray, error) {
	begin := time.Now()
	out := make([]*sipl.ChunkedArray, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := apply(ctx, fn, c)
		if err != nil {
			return nil, errors.WithMessagef(err, "chunk %d", i)
		}
		out = append(out, r)
	}
	e.shuffle(out)
	e.logger.Debug("mapped chunks", zap.String("engine", "sequential"), zap.Int("chunks", len(out)), zap.Duration("elapsed", time.Since(begin)))
	return out, nil
}

// Concurrent runs fn over chunks on a bounded number of goroutines.
// Results are collected in completion order.
type Concurrent struct {
	engineOptions
	workers int
}

var _ Engine = (*Concurrent)(nil)

func NewConcurrent(workers int, opts ...EngineOption) *Concurrent {
	if workers < 1 {
		workers = 1
	}
	return &Concurrent{engineOptions: newEngineOptions(opts), workers: workers}
}

func (e *Concurrent) Map(ctx context.Context, chunks []*sipl.ChunkedArray, fn MapFunc) ([]*sipl.ChunkedArray, error) {
	begin := time.Now()
	var (
		mu  sync.Mutex
		out = make([]*sipl.ChunkedArray, 0, len(chunks))
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i, c := range chunks {
		i, c := i, c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := apply(ctx, fn, c)
			if err != nil {
				return errors.WithMessagef(err, "chunk %d", i)
			}
			mu.Lock()
			out = append(out, r)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	e.shuffle(out)
	e.logger.Debug("mapped chunks", zap.String("engine", "concurrent"), zap.Int("workers", e.workers), zap.Int("chunks", len(out)), zap.Duration("elapsed", time.Since(begin)))
	return out, nil
}

// apply runs fn on c, treating a nil fn as the identity.
func apply(ctx context.Context, fn MapFunc, c *sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
	if fn == nil {
		return c, nil
	}
	return fn(ctx, c)
}

func (o *engineOptions) shuffle(chunks []*sipl.ChunkedArray) {
	if o.rng == nil {
		return
	}
	o.rng.Shuffle(len(chunks), func(i, j int) {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	})
}
