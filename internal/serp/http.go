// Package serp provides SearchProvider implementations: an HTTP client
// for a JSON SERP API, a deterministic synthetic provider for
// development, and a TTL-cached read-through decorator.
package serp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/brandlens/footprint/internal/analysis"
)

// HTTPConfig configures the SERP API client.
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// HTTPProvider queries a JSON SERP API over HTTP.
type HTTPProvider struct {
	client *resty.Client
	cfg    HTTPConfig
}

type serpResponse struct {
	Results []struct {
		Rank   int    `json:"rank"`
		Domain string `json:"domain"`
		Title  string `json:"title"`
		URL    string `json:"url"`
	} `json:"results"`
}

// NewHTTPProvider builds an HTTPProvider.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("serp endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &HTTPProvider{client: client, cfg: cfg}, nil
}

// Search requests the top results for keyword. 5xx responses surface as
// transient SearchProviderError; 4xx responses are not retried.
func (p *HTTPProvider) Search(ctx context.Context, keyword string, limit int) ([]analysis.SearchResult, error) {
	var body serpResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("q", keyword).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&body).
		Get("/search")
	if err != nil {
		return nil, analysis.SearchProviderError(err)
	}
	if resp.IsError() {
		err := fmt.Errorf("serp api status %d", resp.StatusCode())
		if resp.StatusCode() >= 500 {
			return nil, analysis.SearchProviderError(err)
		}
		return nil, analysis.NewFailure(analysis.KindSearchProvider, "serp api rejected query", err)
	}
	out := make([]analysis.SearchResult, 0, len(body.Results))
	for i, r := range body.Results {
		rank := r.Rank
		if rank == 0 {
			rank = i + 1
		}
		out = append(out, analysis.SearchResult{
			Rank:   rank,
			Domain: analysis.NormalizeDomain(r.Domain),
			Title:  r.Title,
			URL:    r.URL,
		})
	}
	return out, nil
}
