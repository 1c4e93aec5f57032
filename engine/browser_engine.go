package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/sites"
)

// Session is one isolated headless-browser tab with its own browsing
// context. Implementations must make Close safe to call after any failure.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitLoad(ctx context.Context) error
	WaitSelector(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Viewport is the emulated window size.
type Viewport struct {
	Width  int
	Height int
}

// SessionOptions configures a new Session.
type SessionOptions struct {
	Proxy     string
	UserAgent string
	Viewport  Viewport
	Headers   map[string]string
}

// SessionOpener creates rendering sessions.
type SessionOpener interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// BrowserOptions tunes the browser strategy. Zero fields take defaults.
type BrowserOptions struct {
	Timeout         time.Duration // whole attempt; default 2m
	SettleDelay     time.Duration // after the load milestone; default 5s
	PostWaitDelay   time.Duration // after site selector waits; default 5s
	SelectorTimeout time.Duration // per site selector; default 10s
	CloseTimeout    time.Duration // session teardown; default 10s
	Viewport        Viewport      // default 1920x1080
}

func (o BrowserOptions) withDefaults() BrowserOptions {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	} else if o.SettleDelay == 0 {
		o.SettleDelay = 5 * time.Second
	}
	if o.PostWaitDelay < 0 {
		o.PostWaitDelay = 0
	} else if o.PostWaitDelay == 0 {
		o.PostWaitDelay = 5 * time.Second
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = 10 * time.Second
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 10 * time.Second
	}
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = Viewport{Width: 1920, Height: 1080}
	}
	return o
}

// BrowserEngine is the rendering fallback strategy. Every fetch runs in a
// fresh session that is closed on every exit path.
type BrowserEngine struct {
	opener SessionOpener
	sites  *sites.Registry
	opts   BrowserOptions
	logger *slog.Logger
}

// NewBrowserEngine creates a BrowserEngine. Negative delays in opts disable
// the corresponding settle wait.
func NewBrowserEngine(opener SessionOpener, registry *sites.Registry, opts BrowserOptions, logger *slog.Logger) *BrowserEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserEngine{
		opener: opener,
		sites:  registry,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (e *BrowserEngine) Name() string { return "browser" }

// Fetch renders req.URL.
//
// Lifecycle:
//
//  1. Timeout guard     – hard deadline on the whole attempt
//  2. Open session      – isolated context, random UA, fixed viewport
//  3. DEFER: close      – runs on a context detached from the request
//  4. Navigate
//  5. Load milestone    – failure only matters if the deadline passed
//  6. Settle delay
//  7. Site waits        – each bounded, none fatal
//  8. Post-wait delay
//  9. Capture HTML
func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.opener == nil {
		return nil, errors.New("browser_engine: no session opener configured")
	}

	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Open session ───────────────────────────────────────────────
	session, err := e.opener.Open(ctx, SessionOptions{
		Proxy:     req.Proxy,
		UserAgent: RandomUserAgent(),
		Viewport:  e.opts.Viewport,
		Headers:   req.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("browser_engine: open session: %w", err)
	}

	// ── 3. Guaranteed teardown ────────────────────────────────────────
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.CloseTimeout)
		defer closeCancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			e.logger.Warn("browser session close failed", "url", req.URL, "error", closeErr)
		}
	}()

	// ── 4. Navigate ───────────────────────────────────────────────────
	if err := session.Navigate(ctx, req.URL); err != nil {
		return nil, fmt.Errorf("browser_engine: navigate: %w", err)
	}

	// ── 5. Document-ready milestone ──────────────────────────────────
	if err := session.WaitLoad(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("browser_engine: wait load: %w", ctx.Err())
		}
		e.logger.Debug("load milestone not reached, continuing", "url", req.URL, "error", err)
	}

	// ── 6. Settle ─────────────────────────────────────────────────────
	if err := sleep(ctx, e.opts.SettleDelay); err != nil {
		return nil, fmt.Errorf("browser_engine: settle: %w", err)
	}

	// ── 7. Site-specific waits ───────────────────────────────────────
	if site, ok := e.sites.Lookup(req.URL); ok && len(site.WaitSelectors) > 0 {
		for _, sel := range site.WaitSelectors {
			wctx, wcancel := context.WithTimeout(ctx, e.opts.SelectorTimeout)
			werr := session.WaitSelector(wctx, sel)
			wcancel()
			if werr != nil {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("browser_engine: wait selector: %w", ctx.Err())
				}
				e.logger.Debug("site selector did not appear", "site", site.Name, "selector", sel, "error", werr)
			}
		}

		// ── 8. Post-wait settle ──────────────────────────────────────
		if err := sleep(ctx, e.opts.PostWaitDelay); err != nil {
			return nil, fmt.Errorf("browser_engine: settle: %w", err)
		}
	}

	// ── 9. Capture ────────────────────────────────────────────────────
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser_engine: capture html: %w", err)
	}

	return &FetchResult{
		HTML:       html,
		StatusCode: 200,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
