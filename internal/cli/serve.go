package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/teller/pkg/adapters/http"
)

// ShutdownGrace bounds how long a stopping server waits for in-flight requests.
const ShutdownGrace = 5 * time.Second

// APIHandler exposes the app over the JSON API, with metrics when enabled.
func (a *App) APIHandler() http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithHealthCheck(a.Health),
		httpAdapter.WithAllowedOrigins(a.Config.Server.CORSOrigins...),
		httpAdapter.WithRateLimit(a.Config.Server.RateLimit, a.Config.Server.RateBurst),
		httpAdapter.WithLogger(a.Logger),
	}
	if a.Config.Server.Metrics {
		opts = append(opts, httpAdapter.WithMetricsHandler(a.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(a.Orchestrator, opts...)
}

// Serve listens on addr until ctx is cancelled, then drains connections.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.APIHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("Teller API listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.Logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", ShutdownGrace, err)
		}
		return nil
	}
}
