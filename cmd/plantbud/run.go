package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vthunder/plantbud/internal/engine"
	"github.com/vthunder/plantbud/internal/logging"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a cycle now and then on every interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := engine.NewRunner(a.engine, cfg.CycleInterval)
			runner.OnResult(func(res *engine.CycleResult) {
				if res.Status == engine.StatusAborted {
					logging.Warn("main", "cycle %s aborted: %v", res.ID, res.Err())
				}
			})

			logging.Info("main", "plantbud starting: %s, every %s, tz %s", cfg.PlantName, cfg.CycleInterval, cfg.Timezone)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return runner.Run(gctx) })
			if cfg.MetricsAddr != "" {
				g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr) })
			}
			err = g.Wait()
			logging.Info("main", "plantbud stopped")
			return err
		},
	}
}

// serveMetrics exposes /metrics until ctx is done
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("main", "metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single cycle and print its result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.engine.RunCycle(cmd.Context(), time.Now())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Status == engine.StatusAborted {
				return fmt.Errorf("cycle aborted: %w", res.Err())
			}
			return nil
		},
	}
}
