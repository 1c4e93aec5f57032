package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/proxypool"
	"golang.org/x/net/html/charset"
)

// HTTPEngine is the lightweight strategy: one GET with a browser-like
// header set and a Chrome TLS fingerprint. It is tried first on every fetch.
type HTTPEngine struct {
	timeout time.Duration

	mu         sync.Mutex
	transports map[string]*http.Transport // keyed by proxy address, "" = direct
}

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine. timeout bounds each fetch when the
// request does not set its own; 0 selects 30s.
func NewHTTPEngine(timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		timeout:    timeout,
		transports: make(map[string]*http.Transport),
	}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transport, err := e.transport(req.Proxy)
	if err != nil {
		return nil, fmt.Errorf("http_engine: %w", err)
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	for k, v := range browserHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http_engine: status %d", resp.StatusCode)
	}
	if ct != "" && !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http_engine: non-html content-type %q", ct)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), ct)
	if err != nil {
		return nil, fmt.Errorf("http_engine: decode body: %w", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}
	bodyStr := string(raw)

	if IsSoftBlock(bodyStr) {
		return nil, fmt.Errorf("http_engine: %w", models.ErrSoftBlock)
	}

	return &FetchResult{
		HTML:       bodyStr,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// Close drops idle connections of every cached transport.
func (e *HTTPEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.transports {
		t.CloseIdleConnections()
	}
	clear(e.transports)
}

// transport returns the cached transport for proxy, building it on first use.
func (e *HTTPEngine) transport(proxy string) (*http.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.transports[proxy]; ok {
		return t, nil
	}
	t, err := newTransport(proxy)
	if err != nil {
		return nil, err
	}
	e.transports[proxy] = t
	return t, nil
}

// newTransport builds a transport that performs a Chrome-fingerprinted TLS
// handshake. Direct and SOCKS5 connections carry the fingerprint; an HTTP
// proxy tunnels with CONNECT and the standard TLS stack.
func newTransport(proxy string) (*http.Transport, error) {
	type contextDialer interface {
		DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	}
	var dialer contextDialer = &net.Dialer{Timeout: 10 * time.Second}

	t := &http.Transport{
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxy != "" {
		u, err := proxypool.ParseAddress(proxy)
		if err != nil {
			return nil, err
		}
		if proxypool.IsSOCKS(u) {
			d, err := proxypool.SOCKSDialer(u, 10*time.Second)
			if err != nil {
				return nil, err
			}
			dialer = d
		} else {
			t.Proxy = http.ProxyURL(u)
		}
	}

	t.DialContext = dialer.DialContext
	t.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, _ := net.SplitHostPort(addr)
		tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply tls spec: %w", err)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
	return t, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
