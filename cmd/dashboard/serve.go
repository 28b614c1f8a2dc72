package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deerbay/olympics-dashboard/internal/api"
	"github.com/deerbay/olympics-dashboard/internal/engine"
	"github.com/deerbay/olympics-dashboard/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			metrics.BuildInfo.WithLabelValues(version, commit).Set(1)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// 1. Start Echo with no engine: data endpoints answer 503 until
			// the build below hands one over.
			h := api.NewHandler(log)
			e := api.NewServer(log, cfg.CORSEnabled(), h)

			errc := make(chan error, 2)

			// 2. Build the dataset in the background
			go func() {
				log.Info("building dataset", "events", cfg.Data.EventsPath, "gender", cfg.Data.GenderPath)
				t0 := time.Now()
				ds, err := engine.Build(ctx, log, cfg)
				if err != nil {
					errc <- fmt.Errorf("failed to build dataset: %w", err)
					return
				}
				h.SetEngine(engine.New(ds, engine.Options{
					CacheTTL:      cfg.Engine.CacheTTL,
					CacheCapacity: *cfg.Engine.CacheCapacity,
				}))
				log.Info("dataset ready, API is fully ready", "duration", time.Since(t0))
			}()

			// 3. Start Server
			go func() {
				log.Info("server listening", "address", cfg.Server.ListenAddr)
				if err := e.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- fmt.Errorf("server failed: %w", err)
				}
			}()

			var runErr error
			select {
			case <-ctx.Done():
				log.Info("shutting down")
			case runErr = <-errc:
				log.Error("fatal", "error", runErr)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to shut down server cleanly", "error", err)
			}
			return runErr
		},
	}
}
