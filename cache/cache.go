// Package cache memoizes extracted product records by page URL.
//
// A Store sits in front of a byte-oriented Backend (Redis or in-process
// memory). Every failure inside the cache is logged and reported as a miss;
// callers never see a cache error.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// DefaultTTL is how long a record stays valid after it is written.
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned by a Backend when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Backend is a key/value store with per-key expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Name() string
}

// Entry is the stored form of a record: the record fields plus the source
// URL and an absolute expiry, serialized as one flat JSON object.
type Entry struct {
	models.ProductRecord
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is the product record cache. A nil Store, or one without a backend,
// behaves as an always-empty cache.
type Store struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Store. ttl <= 0 selects DefaultTTL. opTimeout bounds each
// backend round-trip; 0 disables the bound.
func New(backend Backend, ttl, opTimeout time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:   backend,
		ttl:       ttl,
		opTimeout: opTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the cached record for url if present and unexpired.
func (s *Store) Get(ctx context.Context, url string) (models.ProductRecord, bool) {
	if !s.enabled() {
		return models.ProductRecord{}, false
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.backend.Get(ctx, url)
	if errors.Is(err, ErrMiss) {
		return models.ProductRecord{}, false
	}
	if err != nil {
		s.warn("get", url, err)
		return models.ProductRecord{}, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.warn("decode", url, err)
		return models.ProductRecord{}, false
	}
	if !s.now().Before(e.ExpiresAt) {
		return models.ProductRecord{}, false
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	return e.ProductRecord, true
}

// Put stores rec under url for the configured TTL. It reports whether the
// write reached the backend.
func (s *Store) Put(ctx context.Context, url string, rec models.ProductRecord) bool {
	if !s.enabled() {
		return false
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(Entry{
		ProductRecord: rec,
		URL:           url,
		ExpiresAt:     s.now().Add(s.ttl).UTC(),
	})
	if err != nil {
		s.warn("encode", url, err)
		return false
	}
	if err := s.backend.Set(ctx, url, raw, s.ttl); err != nil {
		s.warn("set", url, err)
		return false
	}
	return true
}

// Invalidate removes the record for url. It reports whether one was removed.
func (s *Store) Invalidate(ctx context.Context, url string) bool {
	if !s.enabled() {
		return false
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.backend.Delete(ctx, url)
	if err != nil {
		s.warn("delete", url, err)
		return false
	}
	return removed
}

// Status reports "disabled", the backend name, or "<name>: unavailable".
func (s *Store) Status(ctx context.Context) string {
	if !s.enabled() {
		return "disabled"
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		return s.backend.Name() + ": unavailable"
	}
	return s.backend.Name()
}

func (s *Store) enabled() bool {
	return s != nil && s.backend != nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) warn(op, url string, err error) {
	s.logger.Warn("cache degraded to pass-through",
		"op", op,
		"backend", s.backend.Name(),
		"url", url,
		"error", fmt.Errorf("%w: %w", models.ErrCacheUnavailable, err),
	)
}
