package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/scraper"
)

type fakeScraper struct {
	result      *scraper.Result
	err         error
	scraped     []string
	invalidated []string
	removed     bool
}

func (f *fakeScraper) Scrape(_ context.Context, u string) (*scraper.Result, error) {
	f.scraped = append(f.scraped, u)
	return f.result, f.err
}

func (f *fakeScraper) Invalidate(_ context.Context, u string) bool {
	f.invalidated = append(f.invalidated, u)
	return f.removed
}

type fakeCache struct{ status string }

func (f fakeCache) Status(context.Context) string { return f.status }

type fakePool struct{ n, refills int }

func (f fakePool) Len() int     { return f.n }
func (f fakePool) Refills() int { return f.refills }

func testConfig(keys ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.Enabled = len(keys) > 0
	cfg.Auth.APIKeys = keys
	return cfg
}

func do(t *testing.T, r http.Handler, method, target, body string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestAnalyze(t *testing.T) {
	rec := models.EmptyProduct()
	rec.Title = "Linen Shirt"
	rec.Price = 49.9

	tests := []struct {
		name       string
		hit        bool
		wantStatus string
	}{
		{"miss", false, "miss"},
		{"hit", true, "hit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{result: &scraper.Result{Record: rec, CacheHit: tt.hit, RequestID: "req-1"}}
			r := NewRouter(Deps{Scraper: sc}, testConfig())

			w, out := do(t, r, http.MethodPost, "/api/v1/analyze", `{"url":"https://shop.example.com/p/1"}`, nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
			assert.Equal(t, true, out["success"])
			assert.Equal(t, tt.wantStatus, out["cache_status"])

			product := out["product"].(map[string]any)
			assert.Equal(t, "Linen Shirt", product["title"])
			assert.Equal(t, 49.9, product["price"])
			assert.Equal(t, []any{}, product["images"])
			assert.Equal(t, []string{"https://shop.example.com/p/1"}, sc.scraped)
		})
	}
}

func TestAnalyzeRefreshInvalidatesFirst(t *testing.T) {
	sc := &fakeScraper{result: &scraper.Result{Record: models.EmptyProduct()}}
	r := NewRouter(Deps{Scraper: sc}, testConfig())

	w, _ := do(t, r, http.MethodPost, "/api/v1/analyze", `{"url":"https://shop.example.com/p/1","refresh":true}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://shop.example.com/p/1"}, sc.invalidated)
}

func TestAnalyzeErrors(t *testing.T) {
	const u = "https://shop.example.com/p/1"
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"relative url", `{"url":"/p/1"}`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"fetch failed", `{"url":"` + u + `"}`, models.NewScrapeError(models.ErrCodeFetch, u, "fetch failed", errors.New("boom")), http.StatusBadGateway, models.ErrCodeFetch},
		{"parse failed", `{"url":"` + u + `"}`, models.NewScrapeError(models.ErrCodeParse, u, "parse failed", models.ErrEmptyDocument), http.StatusUnprocessableEntity, models.ErrCodeParse},
		{"timeout", `{"url":"` + u + `"}`, models.NewScrapeError(models.ErrCodeTimeout, u, "fetch failed", context.DeadlineExceeded), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{"untyped error", `{"url":"` + u + `"}`, errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(Deps{Scraper: &fakeScraper{err: tt.err}}, testConfig())

			w, out := do(t, r, http.MethodPost, "/api/v1/analyze", tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, false, out["success"])
			assert.NotContains(t, out, "product")
			assert.Equal(t, tt.wantErr, out["error"].(map[string]any)["code"])
		})
	}
}

func TestInvalidateRoute(t *testing.T) {
	sc := &fakeScraper{removed: true}
	r := NewRouter(Deps{Scraper: sc}, testConfig())

	target := "/api/v1/cache?url=" + url.QueryEscape("https://shop.example.com/p/1")
	w, out := do(t, r, http.MethodDelete, target, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["removed"])
	assert.Equal(t, []string{"https://shop.example.com/p/1"}, sc.invalidated)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/cache", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		deps       Deps
		wantStatus string
		wantCache  string
	}{
		{"no cache no proxy", Deps{}, "healthy", "disabled"},
		{"memory cache", Deps{Cache: fakeCache{"memory"}}, "healthy", "memory"},
		{"redis down", Deps{Cache: fakeCache{"redis: unavailable"}}, "degraded", "redis: unavailable"},
		{"pool drained", Deps{Pool: fakePool{n: 0, refills: 3}}, "degraded", "disabled"},
		{"pool healthy", Deps{Pool: fakePool{n: 7, refills: 1}}, "healthy", "disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Scraper = &fakeScraper{}
			r := NewRouter(tt.deps, testConfig("secret"))

			// health stays open even with auth enabled
			w, out := do(t, r, http.MethodGet, "/api/v1/health", "", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantStatus, out["status"])
			assert.Equal(t, tt.wantCache, out["cache"])
		})
	}
}

func TestAuthGuardsAnalyze(t *testing.T) {
	sc := &fakeScraper{result: &scraper.Result{Record: models.EmptyProduct()}}
	r := NewRouter(Deps{Scraper: sc}, testConfig("secret"))
	body := `{"url":"https://shop.example.com/p/1"}`

	w, out := do(t, r, http.MethodPost, "/api/v1/analyze", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, out["error"].(map[string]any)["code"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/analyze", body, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/analyze", body, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, sc.scraped, 1)
}
