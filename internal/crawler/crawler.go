// Package crawler walks a brand site breadth-first and builds the page
// corpus consumed by keyword extraction.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config bounds one crawl session.
type Config struct {
	PageLimit      int
	Concurrency    int
	PerPageTimeout time.Duration
	OverallTimeout time.Duration
	PerHostRPS     float64
}

func (c Config) withDefaults() Config {
	if c.PageLimit <= 0 {
		c.PageLimit = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.PerPageTimeout <= 0 {
		c.PerPageTimeout = 10 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 60 * time.Second
	}
	if c.PerHostRPS <= 0 {
		c.PerHostRPS = 4
	}
	return c
}

// Crawler fetches pages through an injected PageFetcher.
type Crawler struct {
	fetcher analysis.PageFetcher
	retry   analysis.RetryPolicy
	clock   analysis.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(fetcher analysis.PageFetcher, retry analysis.RetryPolicy, clock analysis.Clock, cfg Config, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		retry:   retry,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

type fetchOutcome struct {
	parsed parsedPage
	err    error
}

// Crawl walks the site starting at baseURL, breadth-first, visiting each
// canonical URL at most once and following only links on the same
// registrable domain. Per-page failures are skipped; hitting the page
// limit or the overall timeout ends the crawl without error. Only a crawl
// that yields zero pages is an error (WebsiteUnreachable).
func (c *Crawler) Crawl(ctx context.Context, baseURL string) (analysis.Corpus, error) {
	cfg := c.cfg
	ctx, cancel := context.WithTimeout(ctx, cfg.OverallTimeout)
	defer cancel()

	start, err := analysis.CanonicalURL(baseURL)
	if err != nil {
		return analysis.Corpus{}, analysis.InvalidInput(fmt.Sprintf("website url: %v", err))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.PerHostRPS), cfg.Concurrency)
	visited := map[string]struct{}{start: {}}
	frontier := []string{baseURL}
	corpus := analysis.Corpus{BaseURL: baseURL}
	var lastErr error

	for len(frontier) > 0 && len(corpus.Pages) < cfg.PageLimit && ctx.Err() == nil {
		// batch and the next frontier must not share a backing array;
		// appends below would otherwise clobber batch entries that the
		// skip path still reads.
		batch := frontier
		frontier = nil
		room := cfg.PageLimit - len(corpus.Pages)
		if len(batch) > room {
			batch = batch[:room]
		}

		outcomes := c.fetchBatch(ctx, limiter, batch)
		for i, out := range outcomes {
			if out.err != nil {
				lastErr = out.err
				c.logger.Warn("page skipped",
					zap.String("url", batch[i]),
					zap.Error(out.err),
				)
				continue
			}
			corpus.Pages = append(corpus.Pages, out.parsed.page)
			for _, link := range out.parsed.links {
				if !analysis.SameSite(baseURL, link) {
					continue
				}
				canonical, err := analysis.CanonicalURL(link)
				if err != nil {
					continue
				}
				if _, seen := visited[canonical]; seen {
					continue
				}
				visited[canonical] = struct{}{}
				frontier = append(frontier, link)
			}
		}
	}

	if len(corpus.Pages) == 0 {
		return analysis.Corpus{}, analysis.WebsiteUnreachable(baseURL, lastErr)
	}
	c.logger.Info("crawl finished",
		zap.String("base_url", baseURL),
		zap.Int("pages", len(corpus.Pages)),
	)
	return corpus, nil
}

// fetchBatch fetches one BFS level with bounded fan-out, preserving order.
func (c *Crawler) fetchBatch(ctx context.Context, limiter *rate.Limiter, urls []string) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(urls))
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = c.fetchOne(ctx, limiter, u)
		}(i, u)
	}
	wg.Wait()
	return outcomes
}

func (c *Crawler) fetchOne(ctx context.Context, limiter *rate.Limiter, pageURL string) fetchOutcome {
	if err := limiter.Wait(ctx); err != nil {
		return fetchOutcome{err: fmt.Errorf("rate limit wait: %w", err)}
	}

	var content analysis.PageContent
	err := analysis.Retry(ctx, c.retry, func() error {
		pageCtx, cancel := context.WithTimeout(ctx, c.cfg.PerPageTimeout)
		defer cancel()
		got, err := c.fetcher.Fetch(pageCtx, pageURL)
		if err != nil {
			return analysis.ScrapingError(pageURL, err)
		}
		if got.StatusCode < 200 || got.StatusCode >= 300 {
			return analysis.ScrapingError(pageURL, fmt.Errorf("status %d", got.StatusCode))
		}
		content = got
		return nil
	})
	if err != nil {
		return fetchOutcome{err: err}
	}

	parsed, err := parsePage(pageURL, content.HTML)
	if err != nil {
		return fetchOutcome{err: analysis.ScrapingError(pageURL, err)}
	}
	parsed.page.FetchedAt = c.clock.Now()
	parsed.page.RawHTML = content.HTML
	return fetchOutcome{parsed: parsed}
}
