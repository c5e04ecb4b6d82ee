package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/pasture/internal/metrics"
	"github.com/leapstack-labs/pasture/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve growth lookups over HTTP",
		Long: `Start an HTTP server answering growth lookups against the configured
GRASP dataset.

Routes:
  GET /healthz      dataset readiness
  GET /categories   stocking-rate categories
  GET /growth       ?region=&soil=&grass_ba=&land_con=&stk_rate=&start=YYYY-MM-DD&months=
  GET /metrics      Prometheus metrics
  GET /events       server-sent events on dataset reload

With --watch the dataset is reopened whenever its file changes.`,
		Example: `  pasture serve --dataset data/grasp.db
  pasture serve --addr 127.0.0.1:9000 --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default :8088)")
	cmd.Flags().Bool("watch", false, "Reload the dataset when its file changes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContextWithoutDataset(cmd)
	cfg := cc.Cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	clk, err := wallClock(cfg)
	if err != nil {
		return err
	}
	prom := metrics.NewPrometheus()
	ds, err := newDataset(cfg, cc.Logger, datasetOptions{Clock: clk, Metrics: prom})
	if err != nil {
		return err
	}
	defer func() { _ = ds.Close() }()

	path, err := resolveDatasetPath(cmd.Context(), cfg, cc.Logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Addr:     cfg.Server.Addr,
		Dataset:  ds,
		Path:     path,
		Watch:    cfg.Server.Watch,
		Gatherer: prom.Registry(),
		Logger:   cc.Logger,
	})

	if problems := srv.Reload(cmd.Context()); len(problems) > 0 {
		for _, p := range problems {
			cc.Renderer.Error(p.String())
		}
		// Keep serving when watching so a fixed file can be picked up.
		if !cfg.Server.Watch {
			return problems
		}
		cc.Renderer.Warning("dataset is not ready; waiting for changes")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc.Renderer.Muted(fmt.Sprintf("Serving %s on %s (Ctrl+C to stop)", path, cfg.Server.Addr))
	return srv.Serve(ctx)
}
