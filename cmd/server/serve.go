package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fibermap/internal/config"
	"fibermap/internal/handler"
	"fibermap/internal/hub"
	"fibermap/internal/logging"
	"fibermap/internal/metrics"
	"fibermap/internal/repository/sqlite"
	"fibermap/internal/service"
	"fibermap/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fibermap API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log, closer := logging.New(cfg.Log)
			defer closer.Close()

			if path != "" {
				log.Info().Str("path", path).Msg("configuration loaded")
			} else {
				log.Info().Msg("no config file found, using defaults and environment")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: search FIBERMAP_CONFIG, ./fibermap.yaml, $XDG_CONFIG_HOME/fibermap, ~/.config/fibermap, /etc/fibermap)")
	return cmd
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("database opened")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	bus := service.NewEventBus()
	svc := service.NewNetworkService(repo, bus, service.WithLogger(log), service.WithMetrics(m))
	if err := svc.Load(ctx); err != nil {
		return err
	}

	if cfg.Seed.Path != "" && svc.Empty() {
		if _, err := svc.ImportFile(ctx, cfg.Seed.Path); err != nil {
			return fmt.Errorf("failed to load seed %s: %w", cfg.Seed.Path, err)
		}
	}

	sseHub := hub.New(log, m)
	h := handler.NewHandler(log, svc, handler.Options{
		Events:         sseHub,
		Metrics:        m,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: h.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sseHub.Run(gctx, bus)
	})

	if cfg.Seed.Watch {
		w := watcher.New(cfg.Seed.Path, func(ctx context.Context) error {
			_, err := svc.ImportFile(ctx, cfg.Seed.Path)
			return err
		}, log)
		g.Go(func() error {
			return w.Watch(gctx)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
