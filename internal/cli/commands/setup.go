package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/pasture/internal/category"
	"github.com/leapstack-labs/pasture/internal/cli/config"
	"github.com/leapstack-labs/pasture/internal/cli/output"
	"github.com/leapstack-labs/pasture/internal/clock"
	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/leapstack-labs/pasture/internal/fetch"
	"github.com/leapstack-labs/pasture/internal/metrics"
	"github.com/leapstack-labs/pasture/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Dataset  *dataset.Dataset
	Renderer *output.Renderer
}

// datasetOptions are the per-command parts of dataset.Options.
type datasetOptions struct {
	Clock   core.Clock
	Metrics metrics.Recorder
}

// NewCommandContext creates a CommandContext with an open, validated dataset.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, datasetOptions{})
}

func newCommandContext(cmd *cobra.Command, dopts datasetOptions) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutDataset(cmd)
	if err := cc.Cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if dopts.Clock == nil {
		clk, err := wallClock(cc.Cfg)
		if err != nil {
			return nil, nil, err
		}
		dopts.Clock = clk
	}

	ds, problems, err := openDataset(cmd.Context(), cc.Cfg, cc.Logger, dopts)
	if err != nil {
		return nil, nil, err
	}
	if err := problems.Err(); err != nil {
		_ = ds.Close()
		return nil, nil, err
	}
	cc.Dataset = ds

	cleanup := func() {
		_ = ds.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutDataset creates a CommandContext without a dataset.
// Useful for commands that report problems themselves.
func NewCommandContextWithoutDataset(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Dataset: config.DatasetConfig{
			Adapter:  config.DefaultAdapter,
			Table:    config.DefaultTable,
			AboveMax: config.DefaultAboveMax,
		},
		Simulation:   config.SimulationConfig{IntervalMonths: config.DefaultIntervalMonths},
		Server:       config.ServerConfig{Addr: config.DefaultAddr},
		OutputFormat: os.Getenv(config.EnvPrefix + "OUTPUT"),
	}
}

// wallClock is the clock for one-shot commands: real today, ending at
// simulation.end when it is set.
func wallClock(cfg *config.Config) (core.Clock, error) {
	clk := clock.Wall{}
	if cfg.Simulation.End != "" {
		end, err := cfg.Simulation.EndDate()
		if err != nil {
			return nil, err
		}
		clk.End = end
	}
	return clk, nil
}

// resolveDatasetPath downloads s3:// datasets into the cache directory and
// returns the local path to open.
func resolveDatasetPath(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	if !fetch.IsRemote(cfg.Dataset.Path) {
		return cfg.Dataset.Path, nil
	}
	f, err := fetch.New(ctx, fetch.Options{
		Region:    cfg.Dataset.S3.Region,
		Endpoint:  cfg.Dataset.S3.Endpoint,
		PathStyle: cfg.Dataset.S3.PathStyle,
		CacheDir:  cfg.Dataset.CacheDir,
		Logger:    logger,
	})
	if err != nil {
		return "", err
	}
	return f.Resolve(ctx, cfg.Dataset.Path)
}

// newDataset builds an unopened dataset from configuration.
func newDataset(cfg *config.Config, logger *slog.Logger, dopts datasetOptions) (*dataset.Dataset, error) {
	policy, err := category.ParsePolicy(cfg.Dataset.AboveMax)
	if err != nil {
		return nil, err
	}
	return dataset.New(dataset.Options{
		Adapter:      cfg.Dataset.Adapter,
		Connection:   cfg.Dataset.AdapterConfig(),
		Table:        cfg.Dataset.Table,
		AbovePolicy:  policy,
		QueryTimeout: cfg.Dataset.QueryTimeout,
		Clock:        dopts.Clock,
		Logger:       logger,
		Metrics:      dopts.Metrics,
	}), nil
}

// openDataset resolves, opens and validates the configured dataset. The
// returned dataset is non-nil whenever err is nil, even when problems were
// found, so callers can close it.
func openDataset(ctx context.Context, cfg *config.Config, logger *slog.Logger, dopts datasetOptions) (*dataset.Dataset, dataset.Problems, error) {
	ds, err := newDataset(cfg, logger, dopts)
	if err != nil {
		return nil, nil, err
	}

	path, err := resolveDatasetPath(ctx, cfg, logger)
	if err != nil {
		return ds, dataset.Problems{{
			Field:   dataset.FieldPath,
			Message: fmt.Sprintf("Unable to download GRASP database (%s)\n%v", cfg.Dataset.Path, err),
		}}, nil
	}

	return ds, ds.OpenAndValidate(ctx, path), nil
}

// siteFlags registers the site and stocking-rate flags shared by growth
// lookups. Values land in the site.* config keys.
func siteFlags(cmd *cobra.Command) {
	cmd.Flags().Int("region", 0, "GRASP region")
	cmd.Flags().Int("soil", 0, "Soil type")
	cmd.Flags().Int("grass-ba", 0, "Grass basal area class")
	cmd.Flags().Int("land-con", 0, "Land condition class")
	cmd.Flags().Float64("stk-rate", 0, "Stocking rate")
}
