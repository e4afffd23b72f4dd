// Package safefetcher implements the page fetcher capability with an
// SSRF-guarded HTTP client: private, loopback, link-local and metadata
// addresses are blocked at the dialer, including after DNS resolution.
package safefetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config controls the guarded client.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Fetcher fetches pages with a safeurl-wrapped client.
type Fetcher struct {
	client *safeurl.WrappedClient
	cfg    Config
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
	config := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes("http", "https").
		EnableIPv6(true).
		Build()
	return &Fetcher{client: safeurl.Client(config), cfg: cfg}
}

// Fetch executes a single guarded GET.
func (f *Fetcher) Fetch(ctx context.Context, url string) (analysis.PageContent, error) {
	start := time.Now()

	type outcome struct {
		resp *http.Response
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		resp, err := f.client.Get(url)
		ch <- outcome{resp: resp, err: err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		return analysis.PageContent{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case out := <-ch:
		if out.err != nil {
			return analysis.PageContent{}, fmt.Errorf("guarded fetch %s: %w", url, out.err)
		}
		resp = out.resp
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return analysis.PageContent{}, fmt.Errorf("read body %s: %w", url, err)
	}
	return analysis.PageContent{
		URL:        url,
		StatusCode: resp.StatusCode,
		HTML:       body,
		Duration:   time.Since(start),
	}, nil
}
