// Package proxypool maintains a small rotation of verified outbound proxies.
//
// The pool hands out proxies round-robin. When the number of live entries
// drops to the refresh threshold, the next Acquire refills the pool: it asks
// the Source for a batch of candidates, verifies them concurrently, and
// replaces the whole list with the survivors.
package proxypool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/shelfscan/models"
	"golang.org/x/sync/errgroup"
)

// Config tunes refill behaviour. Zero fields take the defaults below.
type Config struct {
	RefreshThreshold int           // refill when len <= this; default 5
	BatchSize        int           // candidates requested per refill; default 10
	Countries        []string      // candidate country preference; default US, CA
	CandidateTimeout time.Duration // per candidate request; default 1s
	CheckTimeout     time.Duration // per liveness check; default 5s
	CheckConcurrency int           // default BatchSize

	// RefillCooldown is the minimum spacing between refills, applied even
	// when the pool is empty so a dead source is not polled on every
	// Acquire. 0 refills on every depleted Acquire.
	RefillCooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if len(c.Countries) == 0 {
		c.Countries = []string{"US", "CA"}
	}
	if c.CandidateTimeout <= 0 {
		c.CandidateTimeout = time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 5 * time.Second
	}
	if c.CheckConcurrency <= 0 {
		c.CheckConcurrency = c.BatchSize
	}
	return c
}

// Pool is safe for concurrent use. Acquire, Discard and refills are
// serialized by one mutex, so a refill never races a rotation.
type Pool struct {
	mu         sync.Mutex
	proxies    []models.ProxyEndpoint
	next       int
	refills    int
	lastRefill time.Time

	cfg     Config
	source  Source
	checker Checker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty pool. The first Acquire performs the first refill.
func New(source Source, checker Checker, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:     cfg.withDefaults(),
		source:  source,
		checker: checker,
		logger:  logger,
		now:     time.Now,
	}
}

// Acquire returns the next proxy in rotation, refilling first when the pool
// is at or below the refresh threshold. ok is false when no verified proxy
// is available; callers then proceed without one.
func (p *Pool) Acquire(ctx context.Context) (models.ProxyEndpoint, bool) {
	if p == nil {
		return models.ProxyEndpoint{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) <= p.cfg.RefreshThreshold && p.refillDue() {
		p.refillLocked(ctx)
	}

	if len(p.proxies) == 0 {
		p.logger.Warn("no verified proxy available", "error", models.ErrProxyExhausted)
		return models.ProxyEndpoint{}, false
	}

	p.next %= len(p.proxies)
	ep := p.proxies[p.next]
	p.next = (p.next + 1) % len(p.proxies)
	return ep, true
}

// Discard removes a proxy that failed in use. Unknown addresses are ignored.
func (p *Pool) Discard(addr string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, ep := range p.proxies {
		if ep.Address != addr {
			continue
		}
		p.proxies = append(p.proxies[:i], p.proxies[i+1:]...)
		if i < p.next {
			p.next--
		}
		if len(p.proxies) == 0 {
			p.next = 0
		} else {
			p.next %= len(p.proxies)
		}
		p.logger.Info("proxy discarded", "proxy", addr, "remaining", len(p.proxies))
		return
	}
}

// Len returns the number of verified proxies currently held.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Refills returns how many refill cycles have run.
func (p *Pool) Refills() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refills
}

func (p *Pool) refillDue() bool {
	if p.cfg.RefillCooldown <= 0 || p.lastRefill.IsZero() {
		return true
	}
	return p.now().Sub(p.lastRefill) >= p.cfg.RefillCooldown
}

// refillLocked replaces the pool with freshly verified candidates.
// Caller must hold p.mu.
func (p *Pool) refillLocked(ctx context.Context) {
	p.refills++
	p.lastRefill = p.now()

	if pr, ok := p.source.(Preparer); ok {
		if err := pr.Prepare(ctx); err != nil {
			p.proxies = nil
			p.next = 0
			p.logger.Warn("proxy source unavailable", "source", p.source.Name(), "error", err)
			return
		}
	}

	candidates := p.collect(ctx)
	verified := p.verify(ctx, candidates)

	p.proxies = verified
	p.next = 0
	p.logger.Info("proxy pool refilled",
		"source", p.source.Name(),
		"candidates", len(candidates),
		"verified", len(verified),
	)
}

// collect asks the source for BatchSize candidates, dropping duplicates and
// failed requests.
func (p *Pool) collect(ctx context.Context) []string {
	seen := make(map[string]struct{}, p.cfg.BatchSize)
	var out []string
	for i := 0; i < p.cfg.BatchSize; i++ {
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CandidateTimeout)
		addr, err := p.source.Candidate(cctx, p.cfg.Countries)
		cancel()
		if err != nil {
			p.logger.Debug("proxy candidate request failed", "source", p.source.Name(), "error", err)
			continue
		}
		if _, dup := seen[addr]; dup || addr == "" {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// verify checks every candidate concurrently, each under its own timeout,
// and returns the live ones in candidate order.
func (p *Pool) verify(ctx context.Context, candidates []string) []models.ProxyEndpoint {
	live := make([]bool, len(candidates))
	checkedAt := make([]time.Time, len(candidates))

	var g errgroup.Group
	g.SetLimit(p.cfg.CheckConcurrency)
	for i, addr := range candidates {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
			defer cancel()
			if err := p.checker.Check(cctx, addr); err != nil {
				p.logger.Debug("proxy failed liveness check", "proxy", addr, "error", err)
				return nil
			}
			live[i] = true
			checkedAt[i] = p.now()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ProxyEndpoint, 0, len(candidates))
	for i, addr := range candidates {
		if live[i] {
			out = append(out, models.ProxyEndpoint{Address: addr, VerifiedAt: checkedAt[i]})
		}
	}
	return out
}
