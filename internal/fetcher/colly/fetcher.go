// Package collyfetcher implements the page fetcher capability using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	MaxBodyBytes  int
}

// Fetcher fetches single pages through a Colly collector.
type Fetcher struct {
	cfg Config
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "footprint-bot/0.1"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	return &Fetcher{cfg: cfg}
}

// Fetch executes a single HTTP GET. Colly has no context plumbing of its
// own, so the visit runs in a goroutine and the context is honored by
// abandoning the wait.
func (f *Fetcher) Fetch(ctx context.Context, url string) (analysis.PageContent, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   analysis.PageContent
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		result = analysis.PageContent{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       body,
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch %s (status %d): %w", url, status, err)
		if r != nil && r.StatusCode != 0 {
			// Non-2xx still carries a response; surface it so the caller
			// can classify instead of guessing from the error string.
			result = analysis.PageContent{
				URL:        url,
				StatusCode: r.StatusCode,
				Duration:   time.Since(start),
			}
			fetchErr = nil
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(url); err != nil && fetchErr == nil && result.StatusCode == 0 {
			fetchErr = fmt.Errorf("visit %s: %w", url, err)
		}
		collector.Wait()
	}()

	select {
	case <-ctx.Done():
		return analysis.PageContent{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case <-done:
	}
	if fetchErr != nil {
		return analysis.PageContent{}, fetchErr
	}
	if result.URL == "" && result.StatusCode == 0 {
		return analysis.PageContent{}, fmt.Errorf("fetch %s: empty response", url)
	}
	return result, nil
}
