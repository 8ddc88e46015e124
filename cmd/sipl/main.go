// sipl splits an image into rank-stamped chunks, persists them as
// transport records, reloads them, optionally transforms each chunk and
// writes the reassembled image.
//
// Usage:
//
//	sipl [flags] <input-image> <output-image>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dnlglsn/sipl"
	"github.com/dnlglsn/sipl/pipeline"
	"github.com/dnlglsn/sipl/pixel"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		transform  string
		verbose    bool
		version    bool
	)
	cfg := pipeline.DefaultConfig()

	flagSet := pflag.NewFlagSet("sipl", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file; flags override it")
	flagSet.IntVarP(&cfg.Split.NumSplits, "splits", "n", cfg.Split.NumSplits, "number of chunks along the row axis")
	flagSet.StringVar(&cfg.Store.URL, "store", cfg.Store.URL, "chunk store: empty for memory, a bucket URL (mem://, file:///dir) or a directory")
	flagSet.StringVar(&cfg.Store.Key, "key", cfg.Store.Key, "name of the chunk collection in the store")
	flagSet.StringVar(&cfg.Store.Profile, "profile", cfg.Store.Profile, "record profile: text or binary")
	flagSet.StringVar(&cfg.Store.Compression, "compression", cfg.Store.Compression, "payload compression: gzip, zstd, lz4, s2 or empty")
	flagSet.BoolVar(&cfg.Store.Checksum, "checksum", cfg.Store.Checksum, "add and verify blake3 payload checksums")
	flagSet.BoolVar(&cfg.Store.Overwrite, "overwrite", cfg.Store.Overwrite, "replace an existing collection")
	flagSet.IntVarP(&cfg.Render.DecimationFactor, "decimate", "d", cfg.Render.DecimationFactor, "shrink output sides to dim/(factor+1)")
	flagSet.StringVar(&cfg.Render.Format, "format", cfg.Render.Format, "output format (default: from the output extension)")
	flagSet.IntVarP(&cfg.Engine.Workers, "workers", "w", cfg.Engine.Workers, "concurrent chunk workers")
	flagSet.BoolVar(&cfg.Engine.Shuffle, "shuffle", cfg.Engine.Shuffle, "collect chunks in random order")
	flagSet.Int64Var(&cfg.Engine.Seed, "seed", cfg.Engine.Seed, "seed for --shuffle and channel-shift")
	flagSet.StringVarP(&transform, "transform", "t", pipeline.TransformNone, "per-chunk transform: "+strings.Join(pipeline.TransformNames(), ", "))
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "development logging")
	flagSet.BoolVar(&version, "version", false, "print the version and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if version {
		fmt.Println("sipl", sipl.Version)
		return nil
	}

	if configPath != "" {
		loaded, err := pipeline.LoadConfig(configPath)
		if err != nil {
			return err
		}
		// explicitly set flags win over the file
		overrideChanged(flagSet, loaded, cfg)
		cfg = loaded
	}

	positional := flagSet.Args()
	if len(positional) != 2 {
		return errors.Errorf("expected <input-image> <output-image>, got %d arguments", len(positional))
	}
	input, output := positional[0], positional[1]

	fn, err := pipeline.TransformByName(transform, cfg.Engine.Seed)
	if err != nil {
		return err
	}
	format := cfg.Render.Format
	if format == "" {
		if format, err = pixel.FormatFromPath(output); err != nil {
			return err
		}
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closer, err := cfg.Store.Open(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	img, err := pixel.Open(input)
	if err != nil {
		return err
	}
	logger.Info("decoded image", zap.String("input", input), zap.Ints("shape", img.Shape()))

	out, err := pipeline.Run(ctx, cfg, store, img, fn, logger)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.Wrap(err, "creating output")
	}
	if err := pipeline.NewRenderer(cfg.Render, logger).Render(f, out, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote image", zap.String("output", output), zap.String("transform", transform))
	return nil
}

// overrideChanged copies every flag the user set from flagCfg into dst.
func overrideChanged(fs *pflag.FlagSet, dst, flagCfg *pipeline.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "splits":
			dst.Split.NumSplits = flagCfg.Split.NumSplits
		case "store":
			dst.Store.URL = flagCfg.Store.URL
		case "key":
			dst.Store.Key = flagCfg.Store.Key
		case "profile":
			dst.Store.Profile = flagCfg.Store.Profile
		case "compression":
			dst.Store.Compression = flagCfg.Store.Compression
		case "checksum":
			dst.Store.Checksum = flagCfg.Store.Checksum
		case "overwrite":
			dst.Store.Overwrite = flagCfg.Store.Overwrite
		case "decimate":
			dst.Render.DecimationFactor = flagCfg.Render.DecimationFactor
		case "format":
			dst.Render.Format = flagCfg.Render.Format
		case "workers":
			dst.Engine.Workers = flagCfg.Engine.Workers
		case "shuffle":
			dst.Engine.Shuffle = flagCfg.Engine.Shuffle
		case "seed":
			dst.Engine.Seed = flagCfg.Engine.Seed
		}
	})
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
