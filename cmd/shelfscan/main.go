package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/shelfscan/api"
	"github.com/use-agent/shelfscan/app"
	"github.com/use-agent/shelfscan/config"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	slog.Info("shelfscan starting",
		"addr", cfg.Addr(),
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
		"cache", cfg.Cache.Backend,
		"proxy", cfg.Proxy.Enabled,
	)

	// ── 3. Wire the pipeline (launches the browser) ─────────────────
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to initialise pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// ── 4. Setup router ─────────────────────────────────────────────
	deps := api.Deps{Scraper: a.Scraper}
	if a.Cache != nil {
		deps.Cache = a.Cache
	}
	if a.Pool != nil {
		deps.Pool = a.Pool
	}
	router := api.NewRouter(deps, cfg)

	// ── 5. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Browser scrapes can run for minutes; drain for a bounded window.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// a.Close() runs via defer: closes Chrome and the cache backend.
	slog.Info("shelfscan stopped")
}
