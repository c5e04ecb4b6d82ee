// Package server exposes a GRASP dataset over HTTP.
//
// Routes:
//
//	GET /healthz     readiness of the dataset
//	GET /categories  the stocking-rate categories
//	GET /growth      interval records for a site and stocking rate
//	GET /metrics     Prometheus metrics, when a gatherer is configured
//	GET /events      server-sent reload events
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/pasture/internal/dataset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by New.
const (
	DefaultAddr         = ":8088"
	DefaultMonths       = 12
	DefaultReloadDelay  = 100 * time.Millisecond
	shutdownGracePeriod = 5 * time.Second
	readHeaderTimeout   = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr    string
	Dataset *dataset.Dataset
	// Path is the local dataset file reopened by Reload and watched when
	// Watch is set.
	Path  string
	Watch bool
	// ReloadDelay debounces file change events.
	ReloadDelay time.Duration
	// Gatherer backs /metrics. The route is absent when nil.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server serves one dataset.
type Server struct {
	opts   Options
	logger *slog.Logger
	events *broadcaster
	router chi.Router
}

// New creates a server and its routes.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Path == "" && opts.Dataset != nil {
		opts.Path = opts.Dataset.Path()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		events: newBroadcaster(),
	}

	r := chi.NewMux()
	r.Use(
		requestID,
		s.logRequests,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	r.Get("/healthz", s.handleHealth)
	r.Get("/categories", s.handleCategories)
	r.Get("/growth", s.handleGrowth)
	r.Get("/events", s.handleEvents)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload reopens the dataset from its path and notifies /events subscribers.
func (s *Server) Reload(ctx context.Context) dataset.Problems {
	problems := s.opts.Dataset.OpenAndValidate(ctx, s.opts.Path)
	if len(problems) > 0 {
		s.logger.Warn("dataset reload found problems", "path", s.opts.Path, "problems", len(problems))
	} else {
		s.logger.Info("dataset reloaded", "path", s.opts.Path)
	}

	s.events.Broadcast(Event{
		Kind:     EventReload,
		Dataset:  s.opts.Path,
		Ready:    len(problems) == 0,
		Problems: problems,
		At:       time.Now().UTC(),
	})
	return problems
}

// Serve listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully. With Watch set it also reloads the dataset when its file changes.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if s.opts.Watch {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watch reloads the dataset when its file is written or replaced. The parent
// directory is watched so atomic renames are seen.
func (s *Server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.opts.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		s.logger.Error("failed to watch dataset directory", "path", target, "error", err)
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	// Reloads run on this goroutine so none outlives the errgroup.
	debounce := time.NewTimer(s.opts.ReloadDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			debounce.Reset(s.opts.ReloadDelay)

		case <-debounce.C:
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("dataset changed, reloading", "file", target)
			s.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
