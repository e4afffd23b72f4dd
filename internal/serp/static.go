package serp

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brandlens/footprint/internal/analysis"
)

// StaticProvider generates deterministic synthetic results for
// development and tests: the same keyword always yields the same ranked
// domain list. It stands in for a real SERP integration.
type StaticProvider struct {
	domains []string
}

// NewStaticProvider builds a StaticProvider over a fixed domain pool.
// With an empty pool a default set of plausible market domains is used.
func NewStaticProvider(domains []string) *StaticProvider {
	if len(domains) == 0 {
		domains = []string{
			"marketleader.com", "topicalauthority.io", "nichefinder.net",
			"industryinsights.org", "comparewisely.com", "buyersguide.co",
			"expertreviews.net", "solutionhub.io", "trustedadvisor.com",
			"sectorwatch.org", "growthplaybook.io", "benchmarkpro.com",
		}
	}
	return &StaticProvider{domains: domains}
}

// Search returns up to limit deterministic results for keyword.
func (p *StaticProvider) Search(_ context.Context, keyword string, limit int) ([]analysis.SearchResult, error) {
	if limit <= 0 || limit > len(p.domains) {
		limit = len(p.domains)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(keyword))))
	offset := int(h.Sum32()) % len(p.domains)
	if offset < 0 {
		offset += len(p.domains)
	}
	// Keyword hash picks a stable rotation of the pool, so distinct
	// keywords overlap on some domains and diverge on others.
	step := 1 + int(h.Sum32()>>16)%3
	out := make([]analysis.SearchResult, 0, limit)
	for i := 0; i < limit; i++ {
		domain := p.domains[(offset+i*step)%len(p.domains)]
		out = append(out, analysis.SearchResult{
			Rank:   i + 1,
			Domain: domain,
			Title:  fmt.Sprintf("%s | %s", keyword, domain),
			URL:    "https://" + domain,
		})
	}
	return out, nil
}
