package proxypool

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// ErrNoCandidate is returned when a source has nothing matching the request.
var ErrNoCandidate = errors.New("proxypool: no candidate available")

// Source yields candidate proxy addresses. Candidates are unverified.
type Source interface {
	Name() string
	Candidate(ctx context.Context, countries []string) (string, error)
}

// Preparer is implemented by sources that load their listing up front. The
// pool calls Prepare once per refill, outside the per-candidate timeout.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// StaticSource hands out a fixed list of addresses in order, wrapping
// around. Country preference is ignored.
type StaticSource struct {
	mu    sync.Mutex
	addrs []string
	next  int
}

// NewStaticSource creates a StaticSource over addrs.
func NewStaticSource(addrs []string) *StaticSource {
	return &StaticSource{addrs: slices.Clone(addrs)}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Candidate(ctx context.Context, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.addrs) == 0 {
		return "", ErrNoCandidate
	}
	addr := s.addrs[s.next%len(s.addrs)]
	s.next = (s.next + 1) % len(s.addrs)
	return addr, nil
}

// DefaultFreeProxyListURL is a public table of free proxies.
const DefaultFreeProxyListURL = "https://free-proxy-list.net/"

type listedProxy struct {
	addr    string
	country string
	https   bool
}

// FreeProxyListSource scrapes a free-proxy-list style HTML table (columns:
// IP, Port, Code, Country, Anonymity, Google, Https, ...) and returns a
// random row matching the requested countries. The table is re-fetched at
// most once per refresh interval and fetches are paced by a rate limiter.
type FreeProxyListSource struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	refresh time.Duration

	mu        sync.Mutex
	rows      []listedProxy
	fetchedAt time.Time
}

// NewFreeProxyListSource creates a source reading listURL. An empty listURL
// selects DefaultFreeProxyListURL.
func NewFreeProxyListSource(listURL string, refresh time.Duration) *FreeProxyListSource {
	if listURL == "" {
		listURL = DefaultFreeProxyListURL
	}
	if refresh <= 0 {
		refresh = 10 * time.Minute
	}
	return &FreeProxyListSource{
		url:     listURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		refresh: refresh,
	}
}

func (s *FreeProxyListSource) Name() string { return "free-proxy-list" }

// Prepare fetches the table when stale. The fetch is bounded by the client
// timeout, not by ctx's deadline, so a slow list still loads.
func (s *FreeProxyListSource) Prepare(ctx context.Context) error {
	_, err := s.table(context.WithoutCancel(ctx))
	return err
}

func (s *FreeProxyListSource) Candidate(ctx context.Context, countries []string) (string, error) {
	rows, err := s.table(ctx)
	if err != nil {
		return "", err
	}

	var matching []listedProxy
	for _, r := range rows {
		if !r.https {
			continue
		}
		if len(countries) > 0 && !slices.ContainsFunc(countries, func(c string) bool {
			return strings.EqualFold(c, r.country)
		}) {
			continue
		}
		matching = append(matching, r)
	}
	if len(matching) == 0 {
		return "", ErrNoCandidate
	}
	return matching[rand.IntN(len(matching))].addr, nil
}

// table returns the cached rows, fetching them when stale.
func (s *FreeProxyListSource) table(ctx context.Context) ([]listedProxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows != nil && time.Since(s.fetchedAt) < s.refresh {
		return s.rows, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("proxypool: %s: %w", s.Name(), err)
	}

	rows, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}
	s.rows = rows
	s.fetchedAt = time.Now()
	return rows, nil
}

func (s *FreeProxyListSource) scrape(ctx context.Context) ([]listedProxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("proxypool: create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxypool: fetch %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxypool: %s returned status %d", s.Name(), resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("proxypool: parse %s: %w", s.Name(), err)
	}

	rows := []listedProxy{}
	doc.Find("table tbody tr").Each(func(_ int, sel *goquery.Selection) {
		cells := sel.Find("td")
		if cells.Length() < 7 {
			return
		}
		ip := strings.TrimSpace(cells.Eq(0).Text())
		portStr := strings.TrimSpace(cells.Eq(1).Text())
		if ip == "" || portStr == "" {
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return
		}
		rows = append(rows, listedProxy{
			addr:    fmt.Sprintf("http://%s:%d", ip, port),
			country: strings.TrimSpace(cells.Eq(2).Text()),
			https:   strings.EqualFold(strings.TrimSpace(cells.Eq(6).Text()), "yes"),
		})
	})
	return rows, nil
}
