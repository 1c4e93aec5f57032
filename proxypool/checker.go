package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Checker decides whether a proxy is alive.
type Checker interface {
	Check(ctx context.Context, addr string) error
}

// DefaultCheckTarget is a known-good page fetched through each candidate.
const DefaultCheckTarget = "https://www.google.com"

// HTTPChecker fetches Target through the proxy and requires a 200.
type HTTPChecker struct {
	Target  string
	Timeout time.Duration
}

// NewHTTPChecker returns a checker against DefaultCheckTarget.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{Target: DefaultCheckTarget, Timeout: timeout}
}

func (c *HTTPChecker) Check(ctx context.Context, addr string) error {
	transport, err := NewTransport(addr, c.Timeout)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport, Timeout: c.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Target, nil)
	if err != nil {
		return fmt.Errorf("proxypool: check request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("proxypool: check %s: %w", addr, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxypool: check %s: status %d", addr, resp.StatusCode)
	}
	return nil
}
