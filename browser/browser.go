// Package browser implements rendering sessions on a shared headless Chrome
// driven over CDP by go-rod. Each session gets its own incognito browser
// context so cookies, storage and proxy settings never leak between fetches.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/proxypool"
)

var (
	_ engine.SessionOpener = (*Browser)(nil)
	_ engine.Session       = (*session)(nil)
)

// Options configures the launched browser.
type Options struct {
	Headless  bool
	NoSandbox bool
	Bin       string // empty = let rod download/find Chromium

	// BlockedResourceTypes are CDP resource types refused by every
	// session, e.g. "Font", "Media".
	BlockedResourceTypes []string
	BlockAds             bool
}

// Browser owns one Chrome process. It is safe for concurrent use.
type Browser struct {
	browser  *rod.Browser
	opts     Options
	logger   *slog.Logger
	sessions atomic.Int32
}

// Launch starts a headless browser and connects to it.
func Launch(opts Options, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	logger.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return &Browser{browser: b, opts: opts, logger: logger}, nil
}

// ActiveSessions returns the number of open sessions.
func (b *Browser) ActiveSessions() int {
	return int(b.sessions.Load())
}

// Close kills the browser process. Call this on graceful shutdown to
// prevent zombie Chrome processes.
func (b *Browser) Close() error {
	b.logger.Info("browser shutting down", "active_sessions", b.ActiveSessions())
	return b.browser.Close()
}

// Open creates an isolated session: a new incognito context (routed through
// opts.Proxy when set) holding one stealth-patched page.
//
// Anything created before a failure is torn down before Open returns.
func (b *Browser) Open(ctx context.Context, opts engine.SessionOptions) (engine.Session, error) {
	// ── 1. Isolated browser context ──────────────────────────────────
	create := proto.TargetCreateBrowserContext{DisposeOnDetach: true}
	if opts.Proxy != "" {
		u, err := proxypool.ParseAddress(opts.Proxy)
		if err != nil {
			return nil, err
		}
		if u.User != nil {
			b.logger.Warn("proxy credentials are not forwarded to the browser", "proxy", u.Host)
		}
		create.ProxyServer = u.Scheme + "://" + u.Host
	}
	res, err := create.Call(b.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: create context: %w", err)
	}

	s := &session{
		owner:     b,
		contextID: res.BrowserContextID,
	}
	b.sessions.Add(1)

	fail := func(step string, err error) (engine.Session, error) {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeGrace)
		defer cancel()
		return nil, errors.Join(fmt.Errorf("browser: %s: %w", step, err), s.Close(closeCtx))
	}

	// ── 2. Page inside the context ───────────────────────────────────
	incognito := *b.browser
	incognito.BrowserContextID = res.BrowserContextID
	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return fail("create page", err)
	}
	s.page = page

	// ── 3. Stealth injection (before any navigation) ─────────────────
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		b.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	// ── 4. Identity: UA, viewport, headers ───────────────────────────
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return fail("set user agent", err)
		}
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fail("set viewport", err)
		}
	}
	headers := map[string]string{"Referer": "https://www.google.com/"}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	setExtraHeaders(page, headers, b.logger)

	// ── 5. Resource blocking ─────────────────────────────────────────
	s.router = setupHijack(page, b.opts.BlockedResourceTypes, b.opts.BlockAds)

	return s, nil
}

// setExtraHeaders sends headers with every request of the page. Failure is
// logged and the session continues with the browser's own headers.
func setExtraHeaders(c proto.Client, headers map[string]string, logger *slog.Logger) {
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(c); err != nil {
		logger.Warn("extra headers not applied, proceeding with defaults", "error", err)
	}
}
