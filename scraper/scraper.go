// Package scraper is the product scrape pipeline: cache lookup, proxy
// selection, fetch with retry, parse, extract and cache write.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
	"golang.org/x/net/html"
)

// Fetcher retrieves page HTML, optionally through a proxy.
type Fetcher interface {
	Fetch(ctx context.Context, url, proxy string) (*engine.FetchResult, error)
}

// ProxyPool hands out proxies and takes back ones that failed.
type ProxyPool interface {
	Acquire(ctx context.Context) (models.ProxyEndpoint, bool)
	Discard(addr string)
}

// Cache memoizes records by URL. Implementations swallow their own errors.
type Cache interface {
	Get(ctx context.Context, url string) (models.ProductRecord, bool)
	Put(ctx context.Context, url string, rec models.ProductRecord) bool
	Invalidate(ctx context.Context, url string) bool
}

// Extractor builds a record from a parsed page.
type Extractor interface {
	Extract(doc *goquery.Document, sourceURL string) models.ProductRecord
}

// Deps are the collaborators of a Scraper. Pool and Cache may be nil.
type Deps struct {
	Logger    *slog.Logger
	Fetcher   Fetcher
	Pool      ProxyPool
	Cache     Cache
	Extractor Extractor
}

// Options tunes the retry loop around the fetch stage.
type Options struct {
	MaxAttempts int           // default 3
	BaseDelay   time.Duration // first backoff; doubles per retry; default 1s
	MaxDelay    time.Duration // backoff cap; default 30s
}

// Scraper runs the pipeline. It is safe for concurrent use.
type Scraper struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// New validates deps and returns a Scraper.
func New(deps Deps, opts Options) (*Scraper, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("scraper: fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("scraper: extractor is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	return &Scraper{deps: deps, opts: opts, log: deps.Logger}, nil
}

// ScrapeProduct returns the product record for pageURL. On failure the error
// is always a *models.ScrapeError and no record is returned.
func (s *Scraper) ScrapeProduct(ctx context.Context, pageURL string) (models.ProductRecord, error) {
	res, err := s.Scrape(ctx, pageURL)
	if err != nil {
		return models.ProductRecord{}, err
	}
	return res.Record, nil
}

// Scrape is ScrapeProduct with pipeline metadata.
//
// Pipeline:
//
//  1. Validate URL
//  2. Cache lookup         – a hit returns without any fetch
//  3. Fetch with retry     – proxy per attempt, exponential backoff
//  4. Parse                – empty documents are rejected
//  5. Extract
//  6. Cache write          – best effort
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*Result, error) {
	reqID := uuid.NewString()
	log := s.log.With("request_id", reqID, "url", pageURL)

	// ── 1. Validate ───────────────────────────────────────────────────
	if err := validateURL(pageURL); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, pageURL, "invalid url", err)
	}

	// ── 2. Cache lookup ───────────────────────────────────────────────
	if s.deps.Cache != nil {
		if rec, ok := s.deps.Cache.Get(ctx, pageURL); ok {
			log.Info("cache hit")
			return &Result{Record: rec, CacheHit: true, RequestID: reqID}, nil
		}
	}

	// ── 3. Fetch ──────────────────────────────────────────────────────
	fetched, attempts, err := s.fetchWithRetry(ctx, log, pageURL)
	if err != nil {
		log.Error("scrape failed", "attempts", attempts, "error", err)
		return nil, categorizeError(err, pageURL, "fetch failed")
	}

	// ── 4. Parse ──────────────────────────────────────────────────────
	doc, err := parseDocument(fetched.HTML)
	if err != nil {
		log.Error("scrape failed", "stage", "parse", "engine", fetched.EngineName, "error", err)
		return nil, models.NewScrapeError(models.ErrCodeParse, pageURL, "parse failed", err)
	}

	// ── 5. Extract ────────────────────────────────────────────────────
	rec := s.deps.Extractor.Extract(doc, pageURL)

	// ── 6. Cache write ────────────────────────────────────────────────
	if s.deps.Cache != nil {
		s.deps.Cache.Put(ctx, pageURL, rec)
	}

	log.Info("scrape complete", "engine", fetched.EngineName, "attempts", attempts, "title", rec.Title)
	return &Result{
		Record:    rec,
		Engine:    fetched.EngineName,
		Attempts:  attempts,
		RequestID: reqID,
	}, nil
}

// Invalidate drops the cached record for pageURL so the next scrape fetches
// afresh. It reports whether a record was removed.
func (s *Scraper) Invalidate(ctx context.Context, pageURL string) bool {
	if s.deps.Cache == nil {
		return false
	}
	return s.deps.Cache.Invalidate(ctx, pageURL)
}

// fetchWithRetry runs up to MaxAttempts fetches. Each attempt takes a fresh
// proxy; a proxy whose attempt failed is discarded from the pool.
func (s *Scraper) fetchWithRetry(ctx context.Context, log *slog.Logger, pageURL string) (*engine.FetchResult, int, error) {
	var lastErr error
	attempt := 0
	for attempt < s.opts.MaxAttempts {
		if attempt > 0 {
			delay := s.backoff(attempt)
			log.Warn("retrying fetch", "attempt", attempt+1, "delay", delay, "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, attempt, errors.Join(lastErr, err)
			}
		}
		attempt++

		proxy := ""
		if s.deps.Pool != nil {
			if ep, ok := s.deps.Pool.Acquire(ctx); ok {
				proxy = ep.Address
			}
		}

		res, err := s.deps.Fetcher.Fetch(ctx, pageURL, proxy)
		if err == nil {
			return res, attempt, nil
		}
		lastErr = err
		log.Warn("fetch attempt failed", "attempt", attempt, "proxy", proxy, "error", err)

		if proxy != "" {
			s.deps.Pool.Discard(proxy)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, attempt, lastErr
}

// backoff returns the delay before retry n (n >= 1): BaseDelay * 2^(n-1),
// capped at MaxDelay.
func (s *Scraper) backoff(n int) time.Duration {
	d := s.opts.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= s.opts.MaxDelay {
			return s.opts.MaxDelay
		}
	}
	return min(d, s.opts.MaxDelay)
}

// parseDocument parses markup into a queryable document.
func parseDocument(markup string) (*goquery.Document, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, models.ErrEmptyDocument
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	if doc.Find("head *, body *").Length() == 0 && strings.TrimSpace(doc.Text()) == "" {
		return nil, models.ErrEmptyDocument
	}
	return doc, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

// categorizeError wraps a pipeline failure into a ScrapeError so the API
// layer can map it to a status code.
func categorizeError(err error, pageURL, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, pageURL, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, pageURL, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeFetch, pageURL, msg, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
