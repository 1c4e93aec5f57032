// Package app assembles the scrape pipeline from configuration. The server,
// MCP and debug binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/browser"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/extract"
	"github.com/use-agent/shelfscan/proxypool"
	"github.com/use-agent/shelfscan/scraper"
	"github.com/use-agent/shelfscan/sites"
)

// App is a wired pipeline. Cache and Pool are nil when disabled.
type App struct {
	Scraper *scraper.Scraper
	Fetcher *engine.Fetcher
	Cache   *cache.Store
	Pool    *proxypool.Pool
	Sites   *sites.Registry

	closers []func() error
}

// NewLogger builds a slog logger from LogConfig writing to w.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// New wires every component. On error anything already started is closed.
//
// Build order:
//  1. Site registry + extractor
//  2. Fetch strategies (HTTP, optional browser fallback)
//  3. Cache store
//  4. Proxy pool
//  5. Scraper
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// ── 1. Sites ────────────────────────────────────────────────────
	a.Sites = sites.Default()
	ex := extract.New(a.Sites, logger.With("component", "extract"))

	// ── 2. Strategies ───────────────────────────────────────────────
	httpEngine := engine.NewHTTPEngine(cfg.Fetch.HTTPTimeout)
	a.onClose(func() error { httpEngine.Close(); return nil })

	var fallback engine.Engine
	if cfg.Browser.Enabled {
		b, err := browser.Launch(browser.Options{
			Headless:             cfg.Browser.Headless,
			NoSandbox:            cfg.Browser.NoSandbox,
			Bin:                  cfg.Browser.Bin,
			BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
			BlockAds:             cfg.Browser.BlockAds,
		}, logger.With("component", "browser"))
		if err != nil {
			return nil, fmt.Errorf("app: launch browser: %w", err)
		}
		a.onClose(b.Close)

		fallback = engine.NewBrowserEngine(b, a.Sites, engine.BrowserOptions{
			Timeout:         cfg.Browser.Timeout,
			SettleDelay:     cfg.Browser.SettleDelay,
			PostWaitDelay:   cfg.Browser.PostWaitDelay,
			SelectorTimeout: cfg.Browser.SelectorTimeout,
		}, logger.With("component", "engine"))
	}
	a.Fetcher = engine.NewFetcher(httpEngine, fallback, logger.With("component", "fetcher"))

	// ── 3. Cache ────────────────────────────────────────────────────
	backend := newCacheBackend(ctx, cfg.Cache, logger.With("component", "cache"))
	if backend != nil {
		if c, ok := backend.(io.Closer); ok {
			a.onClose(c.Close)
		}
		a.Cache = cache.New(backend, cfg.Cache.TTL, cfg.Cache.OpTimeout, logger.With("component", "cache"))
	}

	// ── 4. Proxy pool ───────────────────────────────────────────────
	if cfg.Proxy.Enabled {
		a.Pool = newPool(cfg.Proxy, logger.With("component", "proxypool"))
	}

	// ── 5. Scraper ──────────────────────────────────────────────────
	deps := scraper.Deps{
		Logger:    logger.With("component", "scraper"),
		Fetcher:   a.Fetcher,
		Extractor: ex,
	}
	// Typed nils must not reach the interfaces.
	if a.Cache != nil {
		deps.Cache = a.Cache
	}
	if a.Pool != nil {
		deps.Pool = a.Pool
	}
	a.Scraper, err = scraper.New(deps, scraper.Options{
		MaxAttempts: cfg.Scraper.MaxAttempts,
		BaseDelay:   cfg.Scraper.BaseDelay,
		MaxDelay:    cfg.Scraper.MaxDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return a, nil
}

// newCacheBackend never fails: an unreachable Redis is logged and kept, and
// the Store degrades to pass-through until it answers.
func newCacheBackend(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Backend {
	switch cfg.Backend {
	case "none":
		return nil
	case "redis":
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		b, err := cache.NewRedisBackend(rctx, cache.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			logger.Warn("redis unreachable, cache runs pass-through until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		return b
	default:
		return cache.NewMemoryBackend(cfg.MaxEntries, time.Minute)
	}
}

func newPool(cfg config.ProxyConfig, logger *slog.Logger) *proxypool.Pool {
	var src proxypool.Source
	if cfg.Source == "static" {
		src = proxypool.NewStaticSource(cfg.Addresses)
	} else {
		src = proxypool.NewFreeProxyListSource(cfg.ListURL, cfg.ListRefresh)
	}

	checker := proxypool.NewHTTPChecker(cfg.CheckTimeout)
	if cfg.CheckURL != "" {
		checker.Target = cfg.CheckURL
	}

	return proxypool.New(src, checker, proxypool.Config{
		RefreshThreshold: cfg.RefreshThreshold,
		BatchSize:        cfg.BatchSize,
		Countries:        cfg.Countries,
		CandidateTimeout: cfg.CandidateTimeout,
		CheckTimeout:     cfg.CheckTimeout,
		RefillCooldown:   cfg.RefillCooldown,
	}, logger)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse start order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
