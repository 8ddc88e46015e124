package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dnlglsn/sipl"
	"github.com/dnlglsn/sipl/pixel"
)

// Splitter breaks a whole array into rank-stamped chunks.
type Splitter struct {
	cfg    SplitConfig
	logger *zap.Logger
}

func NewSplitter(cfg SplitConfig, logger *zap.Logger) *Splitter {
	return &Splitter{cfg: cfg, logger: orNop(logger)}
}

func (s *Splitter) Split(_ context.Context, a *sipl.ChunkedArray) ([]*sipl.ChunkedArray, error) {
	chunks, err := sipl.Chunkify(a, s.cfg.NumSplits)
	if err != nil {
		return nil, err
	}
	s.logger.Info("split array", zap.Stringer("array", a), zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// Persister writes a chunk collection to a store.
type Persister struct {
	cfg    StoreConfig
	store  sipl.Store
	codec  *sipl.Codec
	logger *zap.Logger
}

func NewPersister(cfg StoreConfig, store sipl.Store, logger *zap.Logger) (*Persister, error) {
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	return &Persister{cfg: cfg, store: store, codec: codec, logger: orNop(logger)}, nil
}

// Persist stores chunks under the configured key. An existing collection
// is replaced when Overwrite is set and is an error otherwise.
func (p *Persister) Persist(ctx context.Context, chunks []*sipl.ChunkedArray) error {
	begin := time.Now()
	exists, err := p.store.Exists(ctx, p.cfg.Key)
	if err != nil {
		return err
	}
	if exists {
		if !p.cfg.Overwrite {
			return errors.Errorf("collection %s already exists in %s", p.cfg.Key, p.store.Type())
		}
		p.logger.Debug("removing existing collection", zap.String("key", p.cfg.Key))
		if err := sipl.RemoveChunks(ctx, p.store, p.cfg.Key); err != nil {
			return err
		}
	}

	if err := sipl.WriteChunks(ctx, p.store, p.cfg.Key, p.codec, chunks); err != nil {
		return err
	}
	p.logger.Info("persisted chunks",
		zap.String("key", p.cfg.Key),
		zap.String("store", p.store.Type()),
		zap.Stringer("profile", p.codec.Profile()),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(begin)))
	return nil
}

// Loader reads a chunk collection back from a store.
type Loader struct {
	cfg    StoreConfig
	store  sipl.Store
	codec  *sipl.Codec
	logger *zap.Logger
}

func NewLoader(cfg StoreConfig, store sipl.Store, logger *zap.Logger) (*Loader, error) {
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, store: store, codec: codec, logger: orNop(logger)}, nil
}

func (l *Loader) Load(ctx context.Context) ([]*sipl.ChunkedArray, error) {
	begin := time.Now()
	chunks, err := sipl.ReadChunks(ctx, l.store, l.cfg.Key, l.codec)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded chunks", zap.String("key", l.cfg.Key), zap.Int("chunks", len(chunks)), zap.Duration("elapsed", time.Since(begin)))
	return chunks, nil
}

// Assembler rebuilds the whole array from collected chunks.
type Assembler struct {
	logger *zap.Logger
}

func NewAssembler(logger *zap.Logger) *Assembler {
	return &Assembler{logger: orNop(logger)}
}

func (a *Assembler) Assemble(_ context.Context, chunks []*sipl.ChunkedArray) (*sipl.ChunkedArray, error) {
	out, err := sipl.Reassemble(chunks)
	if err != nil {
		return nil, err
	}
	a.logger.Info("reassembled array", zap.Int("chunks", len(chunks)), zap.Stringer("array", out))
	return out, nil
}

// Renderer encodes an array as an image.
type Renderer struct {
	cfg    RenderConfig
	logger *zap.Logger
}

func NewRenderer(cfg RenderConfig, logger *zap.Logger) *Renderer {
	return &Renderer{cfg: cfg, logger: orNop(logger)}
}

// Render writes a to w. format is used when the configuration names none.
func (r *Renderer) Render(w io.Writer, a *sipl.ChunkedArray, format string) error {
	if r.cfg.Format != "" {
		format = r.cfg.Format
	}
	if err := pixel.Encode(w, a, format, r.cfg.DecimationFactor); err != nil {
		return err
	}
	r.logger.Debug("rendered image", zap.String("format", format), zap.Int("decimation", r.cfg.DecimationFactor))
	return nil
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
