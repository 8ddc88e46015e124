// Package pipeline chains the chunking stages: split an array, persist the
// chunks, load them back, map a function over them on an execution engine
// and reassemble the result.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dnlglsn/sipl"
)

// Pipeline holds one instance of each stage, built from its own copy of
// the configuration.
type Pipeline struct {
	splitter  *Splitter
	persister *Persister
	loader    *Loader
	assembler *Assembler
	engine    Engine
	logger    *zap.Logger
}

// New validates cfg and builds the stages over store. A nil engine
// selects the one cfg.Engine describes.
func New(cfg *Config, store sipl.Store, engine Engine, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = orNop(logger)
	if engine == nil {
		engine = NewEngine(cfg.Engine, logger)
	}

	persister, err := NewPersister(cfg.Store, store, logger)
	if err != nil {
		return nil, err
	}
	loader, err := NewLoader(cfg.Store, store, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		splitter:  NewSplitter(cfg.Split, logger),
		persister: persister,
		loader:    loader,
		assembler: NewAssembler(logger),
		engine:    engine,
		logger:    logger,
	}, nil
}

// Run splits a, round-trips the chunks through the store, applies fn to
// each chunk on the engine and reassembles the results. A nil fn leaves
// the chunks unchanged.
func (p *Pipeline) Run(ctx context.Context, a *sipl.ChunkedArray, fn MapFunc) (*sipl.ChunkedArray, error) {
	begin := time.Now()

	chunks, err := p.splitter.Split(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := p.persister.Persist(ctx, chunks); err != nil {
		return nil, err
	}
	loaded, err := p.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	mapped, err := p.engine.Map(ctx, loaded, fn)
	if err != nil {
		return nil, err
	}
	out, err := p.assembler.Assemble(ctx, mapped)
	if err != nil {
		return nil, err
	}

	p.logger.Info("pipeline finished", zap.Duration("elapsed", time.Since(begin)))
	return out, nil
}

// Run builds a Pipeline from cfg and runs it once.
func Run(ctx context.Context, cfg *Config, store sipl.Store, a *sipl.ChunkedArray, fn MapFunc, logger *zap.Logger) (*sipl.ChunkedArray, error) {
	p, err := New(cfg, store, nil, logger)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, a, fn)
}
