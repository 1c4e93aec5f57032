package proxypool

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ParseAddress normalizes a proxy address. A bare "host:port" is taken as
// an HTTP proxy.
func ParseAddress(addr string) (*url.URL, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("proxypool: empty proxy address")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("proxypool: parse %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("proxypool: unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxypool: proxy %q has no host", addr)
	}
	return u, nil
}

// IsSOCKS reports whether u is a SOCKS5 proxy.
func IsSOCKS(u *url.URL) bool {
	return u.Scheme == "socks5" || u.Scheme == "socks5h"
}

// SOCKSDialer returns a context-aware dialer tunnelling through a SOCKS5 proxy.
func SOCKSDialer(u *url.URL, timeout time.Duration) (proxy.ContextDialer, error) {
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("proxypool: socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxypool: socks5 dialer does not support contexts")
	}
	return cd, nil
}

// NewTransport builds a transport that routes every request through addr.
func NewTransport(addr string, timeout time.Duration) (*http.Transport, error) {
	u, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	t := &http.Transport{
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}
	if IsSOCKS(u) {
		d, err := SOCKSDialer(u, timeout)
		if err != nil {
			return nil, err
		}
		t.DialContext = func(ctx context.Context, network, a string) (net.Conn, error) {
			return d.DialContext(ctx, network, a)
		}
		return t, nil
	}
	t.Proxy = http.ProxyURL(u)
	t.DialContext = (&net.Dialer{Timeout: timeout}).DialContext
	return t, nil
}
