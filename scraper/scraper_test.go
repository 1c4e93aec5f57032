package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/extract"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/sites"
)

const productPage = `<html><head>
<meta property="og:title" content="Linen Shirt">
<meta property="og:description" content="Relaxed fit.">
</head><body>
<span class="price">$49.90</span>
<div class="composition">100% linen</div>
<p>Made in Portugal</p>
</body></html>`

// fakeFetcher fails the first failures calls, then serves html.
type fakeFetcher struct {
	mu       sync.Mutex
	html     string
	failures int
	err      error
	calls    int
	proxies  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, proxy string) (*engine.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.proxies = append(f.proxies, proxy)
	if f.calls <= f.failures {
		return nil, &models.FetchError{URL: url, Attempts: []models.Attempt{
			{Strategy: "http", Err: models.ErrSoftBlock},
			{Strategy: "browser", Err: f.err},
		}}
	}
	return &engine.FetchResult{HTML: f.html, EngineName: "http", StatusCode: 200, FinalURL: url}, nil
}

type fakePool struct {
	next      int
	discarded []string
}

func (p *fakePool) Acquire(context.Context) (models.ProxyEndpoint, bool) {
	p.next++
	return models.ProxyEndpoint{Address: "10.0.0." + string(rune('0'+p.next)) + ":8080"}, true
}

func (p *fakePool) Discard(addr string) { p.discarded = append(p.discarded, addr) }

func newTestScraper(t *testing.T, f Fetcher, pool ProxyPool) *Scraper {
	t.Helper()
	backend := cache.NewMemoryBackend(100, time.Minute)
	t.Cleanup(func() { _ = backend.Close() })

	deps := Deps{
		Fetcher:   f,
		Cache:     cache.New(backend, 0, 0, nil),
		Extractor: extract.New(sites.Default(), nil),
	}
	if pool != nil {
		deps.Pool = pool
	}
	s, err := New(deps, Options{BaseDelay: time.Millisecond})
	require.NoError(t, err)
	return s
}

func TestScrapeProduct(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(t, f, nil)

	rec, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", rec.Title)
	assert.Equal(t, "Relaxed fit.", rec.Description)
	assert.InDelta(t, 49.90, rec.Price, 1e-9)
	assert.Equal(t, "100% linen", rec.Materials)
	assert.Equal(t, "Portugal", rec.ManufacturingLocation)
	assert.Equal(t, "Example", rec.Brand)
	assert.NotNil(t, rec.Images)
}

func TestScrapeIsIdempotentWithinTTL(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(t, f, nil)
	ctx := context.Background()
	const url = "https://shop.example.com/p/2"

	first, err := s.Scrape(ctx, url)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Scrape(ctx, url)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, f.calls, "second scrape must not fetch")

	a, _ := json.Marshal(first.Record)
	b, _ := json.Marshal(second.Record)
	assert.Equal(t, string(a), string(b))
}

func TestInvalidateForcesFreshFetch(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(t, f, nil)
	ctx := context.Background()
	const url = "https://shop.example.com/p/3"

	_, err := s.ScrapeProduct(ctx, url)
	require.NoError(t, err)
	assert.True(t, s.Invalidate(ctx, url))

	_, err = s.ScrapeProduct(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestRetryRotatesAndDiscardsProxies(t *testing.T) {
	f := &fakeFetcher{html: productPage, failures: 2, err: errors.New("timeout")}
	pool := &fakePool{}
	s := newTestScraper(t, f, pool)

	res, err := s.Scrape(context.Background(), "https://shop.example.com/p/4")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080"}, f.proxies)
	assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080"}, pool.discarded)
}

func TestFetchFailureYieldsScrapeError(t *testing.T) {
	f := &fakeFetcher{failures: 100, err: errors.New("navigation timeout")}
	s := newTestScraper(t, f, nil)
	const url = "https://shop.example.com/p/5"

	rec, err := s.ScrapeProduct(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, models.ProductRecord{}, rec)
	assert.Equal(t, 3, f.calls)

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeFetch, se.Code)
	assert.Equal(t, url, se.URL)

	var fe *models.FetchError
	assert.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, models.ErrSoftBlock)

	_, ok := s.deps.Cache.Get(context.Background(), url)
	assert.False(t, ok, "failures are never cached")
}

func TestEmptyDocumentYieldsParseError(t *testing.T) {
	for _, body := range []string{"", "   ", "<html><head></head><body></body></html>"} {
		s := newTestScraper(t, &fakeFetcher{html: body}, nil)
		_, err := s.ScrapeProduct(context.Background(), "https://shop.example.com/empty")

		var se *models.ScrapeError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, models.ErrCodeParse, se.Code)
		assert.ErrorIs(t, err, models.ErrEmptyDocument)
	}
}

func TestInvalidURL(t *testing.T) {
	f := &fakeFetcher{html: productPage}
	s := newTestScraper(t, f, nil)

	for _, u := range []string{"", "/relative/path", "ftp://example.com/x"} {
		_, err := s.ScrapeProduct(context.Background(), u)
		var se *models.ScrapeError
		require.ErrorAs(t, err, &se, u)
		assert.Equal(t, models.ErrCodeInvalidInput, se.Code)
	}
	assert.Zero(t, f.calls)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	f := &fakeFetcher{failures: 100, err: errors.New("down")}
	backend := cache.NewMemoryBackend(10, time.Minute)
	defer backend.Close()
	s, err := New(Deps{
		Fetcher:   f,
		Cache:     cache.New(backend, 0, 0, nil),
		Extractor: extract.New(nil, nil),
	}, Options{BaseDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.ScrapeProduct(ctx, "https://shop.example.com/p/6")
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeTimeout, se.Code)
	assert.Equal(t, 1, f.calls)
}

func TestBackoff(t *testing.T) {
	s, err := New(Deps{Fetcher: &fakeFetcher{}, Extractor: extract.New(nil, nil)},
		Options{BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, time.Second, s.backoff(1))
	assert.Equal(t, 2*time.Second, s.backoff(2))
	assert.Equal(t, 4*time.Second, s.backoff(3))
	assert.Equal(t, 5*time.Second, s.backoff(4))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Extractor: extract.New(nil, nil)}, Options{})
	assert.Error(t, err)
	_, err = New(Deps{Fetcher: &fakeFetcher{}}, Options{})
	assert.Error(t, err)
}
