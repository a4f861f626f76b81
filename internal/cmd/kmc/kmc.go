// Package kmc parses mobility command flags and launches a run.
package kmc

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/morphkmc/internal/platform/cmd"
	kmcapp "github.com/louisbranch/morphkmc/internal/services/kmc/app"
)

// Config holds kmc command configuration.
type Config struct {
	NetworkPath        string        `env:"MORPHKMC_NETWORK_PATH"`
	ParamsPath         string        `env:"MORPHKMC_PARAMS_PATH"`
	OutputDir          string        `env:"MORPHKMC_OUTPUT_DIR" envDefault:"data/kmc"`
	Store              string        `env:"MORPHKMC_STORE" envDefault:"file"`
	CheckpointInterval time.Duration `env:"MORPHKMC_CHECKPOINT_INTERVAL" envDefault:"1h"`
	Resume             bool          `env:"MORPHKMC_RESUME"`
	HealthPort         int           `env:"MORPHKMC_HEALTH_PORT" envDefault:"0"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.NetworkPath, "network", cfg.NetworkPath, "Chromophore network JSON document")
	fs.StringVar(&cfg.ParamsPath, "params", cfg.ParamsPath, "Run parameter JSON document")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for checkpoints and worker logs")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Checkpoint backend: file, sqlite or bbolt")
	fs.DurationVar(&cfg.CheckpointInterval, "checkpoint-interval", cfg.CheckpointInterval, "Wall-clock time between worker checkpoints")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Continue from existing worker checkpoints")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "gRPC health server port (0 disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes a mobility run.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceKMC, func(ctx context.Context) error {
		return kmcapp.Run(ctx, kmcapp.RuntimeConfig{
			NetworkPath:        cfg.NetworkPath,
			ParamsPath:         cfg.ParamsPath,
			OutputDir:          cfg.OutputDir,
			Store:              cfg.Store,
			CheckpointInterval: cfg.CheckpointInterval,
			Resume:             cfg.Resume,
			HealthPort:         cfg.HealthPort,
		})
	})
}
