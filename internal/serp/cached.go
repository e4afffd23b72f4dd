package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
)

// CachedProvider wraps another provider with the shared TTL cache.
// Fresh results are served from cache across jobs; when the inner
// provider fails, a cached entry within the freshness window is served
// instead of the error.
type CachedProvider struct {
	inner  analysis.SearchProvider
	cache  analysis.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider decorates inner with cache.
func NewCachedProvider(inner analysis.SearchProvider, cache analysis.Cache, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Search serves from cache when fresh, otherwise queries the inner
// provider and caches the result (last-writer-wins).
func (p *CachedProvider) Search(ctx context.Context, keyword string, limit int) ([]analysis.SearchResult, error) {
	key := cacheKey(keyword, limit)
	if data, ok := p.cache.Get(key); ok {
		var cached []analysis.SearchResult
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		// Corrupt entries are overwritten below.
	}

	results, err := p.inner.Search(ctx, keyword, limit)
	if err != nil {
		p.logger.Warn("search provider failed, no cached fallback",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return nil, err
	}
	if data, merr := json.Marshal(results); merr == nil {
		p.cache.Set(key, data, p.ttl)
	}
	return results, nil
}

func cacheKey(keyword string, limit int) string {
	return fmt.Sprintf("serp:%s:%d", analysis.NormalizeKeyword(keyword), limit)
}
