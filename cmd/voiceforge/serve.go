package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/voiceforge/internal/httpapi"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/observability"
	"github.com/ent0n29/voiceforge/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	rt, err := newRuntime(ctx, func(evicted []library.Clip) {
		if metrics != nil {
			metrics.ObserveEvictions(len(evicted))
		}
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	metrics = observability.NewMetrics(rt.cfg.MetricsNamespace)

	jobs := pipeline.NewManager(rt.cfg.JobInactivityTimeout)
	jobs.SetExpireHook(func(snap pipeline.Snapshot) {
		rt.logger.Info("job expired", "job", snap.ID, "state", snap.State)
		metrics.ActiveJobs.Set(float64(jobs.ActiveCount()))
	})

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	jobs.StartJanitor(runCtx, 30*time.Second)

	api := httpapi.New(runCtx, rt.cfg, jobs, rt.library, rt.providers, metrics, rt.logger)
	httpServer := &http.Server{
		Addr:              rt.cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server listening", "addr", rt.cfg.BindAddr, "store", rt.cfg.StorePath())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		rt.logger.Info("shutdown signal received")
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn("graceful shutdown failed", "err", err)
		_ = httpServer.Close()
	}
	rt.logger.Info("shutdown complete")
	return nil
}
