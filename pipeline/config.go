package pipeline

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dnlglsn/sipl"
)

// DefaultNumSplits is the chunk count used when none is configured.
const DefaultNumSplits = 4

// Config gathers the settings of every stage. Each stage copies the part it
// needs when it is built.
type Config struct {
	Split  SplitConfig  `yaml:"split"`
	Store  StoreConfig  `yaml:"store"`
	Render RenderConfig `yaml:"render"`
	Engine EngineConfig `yaml:"engine"`
}

// SplitConfig controls how an image is broken into chunks.
type SplitConfig struct {
	// NumSplits is the number of chunks along axis 0.
	NumSplits int `yaml:"num_splits"`
}

// StoreConfig locates the chunk collection and sets its record format.
type StoreConfig struct {
	// URL selects the store: empty for an in-process memory store, a
	// bucket URL such as "mem://" or "file:///srv/sipl" for a blob store,
	// and anything else is taken as a local directory.
	URL string `yaml:"url"`

	// Key names the collection within the store.
	Key string `yaml:"key"`

	// Profile is "text" or "binary".
	Profile string `yaml:"profile"`

	// Compression is one of "", "gzip", "zstd", "lz4", "s2".
	Compression string `yaml:"compression"`

	Checksum bool `yaml:"checksum"`

	// Overwrite removes an existing collection under Key before writing.
	Overwrite bool `yaml:"overwrite"`
}

// RenderConfig controls the output image.
type RenderConfig struct {
	// Format is an output format name. Empty means pick from the output
	// file extension.
	Format string `yaml:"format"`

	// DecimationFactor shrinks each side to dim/(factor+1).
	DecimationFactor int `yaml:"decimation_factor"`
}

// EngineConfig picks the execution engine.
type EngineConfig struct {
	// Workers above 1 selects the concurrent engine.
	Workers int `yaml:"workers"`

	// Shuffle randomises result order with the given seed, which the
	// sequential engine otherwise keeps.
	Shuffle bool  `yaml:"shuffle"`
	Seed    int64 `yaml:"seed"`
}

// DefaultConfig returns a new Config holding the defaults.
func DefaultConfig() *Config {
	return &Config{
		Split: SplitConfig{NumSplits: DefaultNumSplits},
		Store: StoreConfig{
			Key:       "chunks.rdd",
			Profile:   sipl.ProfileText.String(),
			Overwrite: true,
		},
		Engine: EngineConfig{Workers: 1},
	}
}

// LoadConfig reads YAML from path over the defaults and validates the
// result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Split.NumSplits < 1 {
		return errors.Wrapf(sipl.ErrInvalidSplit, "split.num_splits must be at least 1, got %d", c.Split.NumSplits)
	}
	if c.Store.Key == "" {
		return errors.New("store.key is required")
	}
	if _, err := c.Store.Codec(); err != nil {
		return err
	}
	if c.Render.DecimationFactor < 0 {
		return errors.Errorf("render.decimation_factor must not be negative, got %d", c.Render.DecimationFactor)
	}
	if c.Engine.Workers < 0 {
		return errors.Errorf("engine.workers must not be negative, got %d", c.Engine.Workers)
	}
	return nil
}

// Codec builds the record codec described by c.
func (c StoreConfig) Codec() (*sipl.Codec, error) {
	profile := sipl.ProfileText
	if c.Profile != "" {
		p, err := sipl.ParseProfile(c.Profile)
		if err != nil {
			return nil, errors.WithMessage(err, "store.profile")
		}
		profile = p
	}
	comp, err := sipl.ParseCompression(c.Compression)
	if err != nil {
		return nil, errors.WithMessage(err, "store.compression")
	}
	return sipl.NewCodec(
		sipl.WithProfile(profile),
		sipl.WithCompression(comp),
		sipl.WithChecksum(c.Checksum),
	), nil
}

// Open returns the store named by URL. The returned closer releases it.
func (c StoreConfig) Open(ctx context.Context) (sipl.Store, io.Closer, error) {
	switch {
	case c.URL == "":
		return sipl.NewMemoryStore(), nopCloser{}, nil
	case strings.Contains(c.URL, "://"):
		bs, err := sipl.OpenBlobStore(ctx, c.URL)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil
	default:
		ls, err := sipl.NewLocalStore(c.URL)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening store directory %s", c.URL)
		}
		return ls, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
