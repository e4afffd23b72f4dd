package serp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
)

func TestStaticProviderIsDeterministic(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider(nil)
	first, err := p.Search(context.Background(), "project management", 5)
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := p.Search(context.Background(), "project management", 5)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for i, r := range first {
		require.Equal(t, i+1, r.Rank)
		require.NotEmpty(t, r.Domain)
	}
}

func TestStaticProviderDistinctKeywordsDiffer(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider(nil)
	a, err := p.Search(context.Background(), "project management", 5)
	require.NoError(t, err)
	b, err := p.Search(context.Background(), "time tracking", 5)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

type countingProvider struct {
	calls   int
	results []analysis.SearchResult
	err     error
}

func (p *countingProvider) Search(context.Context, string, int) ([]analysis.SearchResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

type fakeCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value []byte, ttl time.Duration) {
	c.data[key] = value
	c.ttls[key] = ttl
}

func TestCachedProviderReadThrough(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{results: []analysis.SearchResult{{Rank: 1, Domain: "rival.com"}}}
	cache := newFakeCache()
	p := NewCachedProvider(inner, cache, time.Hour, nil)

	first, err := p.Search(context.Background(), "Project Management", 10)
	require.NoError(t, err)
	require.Equal(t, inner.results, first)
	require.Equal(t, 1, inner.calls)

	// Case differences hit the same cache entry.
	second, err := p.Search(context.Background(), "project management", 10)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)

	require.Equal(t, time.Hour, cache.ttls["serp:project management:10"])
}

func TestCachedProviderCorruptEntryFallsThrough(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{results: []analysis.SearchResult{{Rank: 1, Domain: "rival.com"}}}
	cache := newFakeCache()
	cache.data["serp:widgets:5"] = []byte("{not json")

	p := NewCachedProvider(inner, cache, time.Hour, nil)
	got, err := p.Search(context.Background(), "widgets", 5)
	require.NoError(t, err)
	require.Equal(t, inner.results, got)
	require.Equal(t, 1, inner.calls)

	var stored []analysis.SearchResult
	require.NoError(t, json.Unmarshal(cache.data["serp:widgets:5"], &stored))
	require.Equal(t, inner.results, stored)
}

func TestCachedProviderPropagatesInnerError(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{err: errors.New("upstream down")}
	p := NewCachedProvider(inner, newFakeCache(), time.Hour, nil)

	_, err := p.Search(context.Background(), "widgets", 5)
	require.Error(t, err)
}

func TestHTTPProviderSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "widgets", r.URL.Query().Get("q"))
		require.Equal(t, "3", r.URL.Query().Get("limit"))
		require.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"domain":"https://www.rival.com/page","title":"Rival","url":"https://rival.com"},
			{"rank":7,"domain":"other.com","title":"Other"}
		]}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Endpoint: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	got, err := p.Search(context.Background(), "widgets", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, analysis.SearchResult{Rank: 1, Domain: "rival.com", Title: "Rival", URL: "https://rival.com"}, got[0])
	require.Equal(t, 7, got[1].Rank)
}

func TestHTTPProviderStatusClassification(t *testing.T) {
	t.Parallel()

	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "widgets", 3)
	require.Error(t, err)
	require.True(t, analysis.IsTransient(err), "5xx should be retryable")

	status = http.StatusBadRequest
	_, err = p.Search(context.Background(), "widgets", 3)
	require.Error(t, err)
	require.False(t, analysis.IsTransient(err), "4xx should not be retryable")
	require.True(t, analysis.IsKind(err, analysis.KindSearchProvider))
}

func TestNewHTTPProviderRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPProvider(HTTPConfig{})
	require.Error(t, err)
}
