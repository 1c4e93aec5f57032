package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeFetch        = "FETCH_FAILED"
	ErrCodeParse        = "PARSE_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

var (
	// ErrSoftBlock marks a response that arrived but carries a meta-refresh
	// interstitial instead of the product page.
	ErrSoftBlock = errors.New("soft block: meta refresh detected")

	// ErrProxyExhausted is reported by the proxy pool when no verified proxy
	// is available. Callers continue without a proxy.
	ErrProxyExhausted = errors.New("proxy pool exhausted")

	// ErrCacheUnavailable wraps cache backend failures. The cache layer logs
	// it and never returns it to its callers.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrEmptyDocument is returned when fetched HTML parses to no content.
	ErrEmptyDocument = errors.New("empty document")
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the only error surfaced by the scrape pipeline. It names the
// URL that failed and wraps the underlying cause.
type ScrapeError struct {
	Code    string
	Message string
	URL     string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.URL)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, url, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, URL: url, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Error()}
}

// Attempt records why a single fetch strategy failed.
type Attempt struct {
	Strategy string
	Err      error
}

// FetchError is returned when every fetch strategy failed for a URL. It keeps
// the failure reason of each strategy in the order they were tried.
type FetchError struct {
	URL      string
	Attempts []Attempt
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("fetch %s failed: %s", e.URL, strings.Join(parts, "; "))
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
