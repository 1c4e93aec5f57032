package proxypool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proxyTable = `<html><body><table class="table"><thead><tr>
<th>IP Address</th><th>Port</th><th>Code</th><th>Country</th><th>Anonymity</th><th>Google</th><th>Https</th><th>Last Checked</th>
</tr></thead><tbody>
<tr><td>1.1.1.1</td><td>8080</td><td>US</td><td>United States</td><td>elite proxy</td><td>no</td><td>yes</td><td>1 min ago</td></tr>
<tr><td>2.2.2.2</td><td>3128</td><td>CA</td><td>Canada</td><td>anonymous</td><td>no</td><td>no</td><td>1 min ago</td></tr>
<tr><td>3.3.3.3</td><td>80</td><td>DE</td><td>Germany</td><td>elite proxy</td><td>no</td><td>yes</td><td>2 mins ago</td></tr>
<tr><td>4.4.4.4</td><td>notaport</td><td>US</td><td>United States</td><td>elite proxy</td><td>no</td><td>yes</td><td>2 mins ago</td></tr>
</tbody></table></body></html>`

func TestFreeProxyListSource(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(proxyTable))
	}))
	defer srv.Close()

	s := NewFreeProxyListSource(srv.URL, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		addr, err := s.Candidate(ctx, []string{"US", "CA"})
		require.NoError(t, err)
		assert.Equal(t, "http://1.1.1.1:8080", addr)
	}
	assert.Equal(t, int64(1), hits.Load(), "table is fetched once per refresh interval")

	addr, err := s.Candidate(ctx, []string{"de"})
	require.NoError(t, err)
	assert.Equal(t, "http://3.3.3.3:80", addr)

	_, err = s.Candidate(ctx, []string{"FR"})
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestFreeProxyListSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewFreeProxyListSource(srv.URL, time.Hour).Candidate(context.Background(), nil)
	assert.Error(t, err)
}

func TestStaticSourceWraps(t *testing.T) {
	s := NewStaticSource([]string{"a:1", "b:2"})
	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		addr, err := s.Candidate(ctx, nil)
		require.NoError(t, err)
		got = append(got, addr)
	}
	assert.Equal(t, []string{"a:1", "b:2", "a:1"}, got)
}

func TestPoolLoadsSlowListOncePerRefill(t *testing.T) {
	table := strings.Replace(proxyTable,
		"<td>anonymous</td><td>no</td><td>no</td>",
		"<td>anonymous</td><td>no</td><td>yes</td>", 1)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(1200 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(table))
	}))
	defer srv.Close()

	// Default config: 1s per candidate, slower than the list itself.
	p := New(NewFreeProxyListSource(srv.URL, time.Hour), &fakeChecker{alive: allAlive}, Config{}, nil)

	ep, ok := p.Acquire(context.Background())
	require.True(t, ok)
	assert.Contains(t, []string{"http://1.1.1.1:8080", "http://2.2.2.2:3128"}, ep.Address)
	assert.NotZero(t, p.Len())
	assert.Equal(t, int64(1), hits.Load())
}

func TestPoolSkipsCandidatesWhenListFails(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	checker := &fakeChecker{alive: allAlive}
	p := New(NewFreeProxyListSource(srv.URL, time.Hour), checker, Config{}, nil)

	_, ok := p.Acquire(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, p.Refills())
	assert.Equal(t, int64(1), hits.Load(), "one list fetch per refill")
	assert.Zero(t, checker.checks)
}
