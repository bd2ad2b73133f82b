// Package server exposes the console's MCP tools over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/config"
)

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Keys       []config.APIKeyEntry
	MCPHandler http.Handler
	Logger     *slog.Logger
	// Healthy reports readiness on /healthz. Nil means always healthy.
	Healthy func() bool
}

// NewMux builds the HTTP mux. /mcp requires one of the configured API
// keys as a Bearer token; /healthz is open.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth(cfg.Healthy))
	mux.Handle("/mcp", APIKeyMiddleware(cfg.Keys, cfg.Logger)(logRequests(cfg.Logger, cfg.MCPHandler)))

	return mux
}

// logRequests records which key holder called /mcp. The writer is passed
// through untouched so streaming responses keep flushing.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		logger.Info("mcp request",
			slog.String("method", r.Method),
			slog.String("key", RequestKeyName(r.Context())),
			slog.String("ip", RequestRemoteIP(r.Context())),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func handleHealth(healthy func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"signed out"}`))

			return
		}

		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting MCP server", slog.String("listen", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving MCP: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down MCP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down MCP server: %w", err)
	}

	return nil
}

// NewHTTPServer wraps handler with the timeouts used for the MCP listener.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
