package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch strategies implement.
type Engine interface {
	// Name returns the strategy identifier ("http" or "browser").
	Name() string

	// Fetch retrieves the page HTML for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything a strategy needs to fetch a page.
type FetchRequest struct {
	URL string

	// Proxy is an optional proxy address ("host:port", "http://..." or
	// "socks5://...").
	Proxy string

	// Headers override the strategy's default request headers.
	Headers map[string]string

	// Timeout bounds this strategy's attempt; 0 uses the strategy default.
	Timeout time.Duration
}

// FetchResult is the output of a successful fetch.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
	EngineName string
}
