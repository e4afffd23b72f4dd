// Package competitors aggregates search-result co-occurrence into a
// ranked, categorized competitor list.
package competitors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config tunes identification.
type Config struct {
	QueryKeywords      int
	ResultsPerQuery    int
	TopM               int
	PrimaryThreshold   float64
	SecondaryThreshold float64
	EmergingThreshold  float64
}

func (c Config) withDefaults() Config {
	if c.QueryKeywords <= 0 {
		c.QueryKeywords = 15
	}
	if c.ResultsPerQuery <= 0 {
		c.ResultsPerQuery = 10
	}
	if c.TopM <= 0 {
		c.TopM = 15
	}
	if c.PrimaryThreshold <= 0 {
		c.PrimaryThreshold = 0.5
	}
	if c.SecondaryThreshold <= 0 {
		c.SecondaryThreshold = 0.25
	}
	if c.EmergingThreshold <= 0 {
		c.EmergingThreshold = 0.1
	}
	return c
}

// Identifier queries the search provider and scores competitor domains.
type Identifier struct {
	provider analysis.SearchProvider
	retry    analysis.RetryPolicy
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Identifier. provider may be nil; identification then
// degrades to the user's known-competitor list.
func New(provider analysis.SearchProvider, retry analysis.RetryPolicy, cfg Config, logger *zap.Logger) *Identifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identifier{provider: provider, retry: retry, cfg: cfg.withDefaults(), logger: logger}
}

type domainStats struct {
	display string
	queries map[string]struct{}
}

// Identify builds the competitor list for a job. brandDomain is excluded
// from results. Known competitors are always included, categorized at
// least secondary. The returned warnings describe degraded provider
// behavior; the call only errors on invariant violations, never on
// provider unavailability.
func (i *Identifier) Identify(ctx context.Context, keywords []analysis.DiscoveredKeyword, known []string, brandDomain string) ([]analysis.IdentifiedCompetitor, []string, error) {
	cfg := i.cfg
	queries := queryTerms(keywords, cfg.QueryKeywords)
	brand := analysis.NormalizeDomain(brandDomain)

	stats := map[string]*domainStats{}
	var warnings []string
	queried := 0

	for _, q := range queries {
		if i.provider == nil {
			break
		}
		var results []analysis.SearchResult
		err := analysis.Retry(ctx, i.retry, func() error {
			got, err := i.provider.Search(ctx, q, cfg.ResultsPerQuery)
			if err != nil {
				return analysis.SearchProviderError(err)
			}
			results = got
			return nil
		})
		if err != nil {
			i.logger.Warn("search query failed", zap.String("keyword", q), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("search results unavailable for %q", q))
			continue
		}
		queried++
		seen := map[string]struct{}{}
		for _, r := range results {
			domain := analysis.NormalizeDomain(r.Domain)
			if domain == "" || domain == brand {
				continue
			}
			// A domain counts once per query keyword.
			if _, dup := seen[domain]; dup {
				continue
			}
			seen[domain] = struct{}{}
			st, ok := stats[domain]
			if !ok {
				st = &domainStats{display: displayName(r, domain), queries: map[string]struct{}{}}
				stats[domain] = st
			}
			st.queries[q] = struct{}{}
		}
	}
	if i.provider == nil && len(queries) > 0 {
		warnings = append(warnings, "no search provider configured; competitor discovery skipped")
	}

	out := make([]analysis.IdentifiedCompetitor, 0, len(stats)+len(known))
	for domain, st := range stats {
		relevance := 0.0
		if queried > 0 {
			relevance = float64(len(st.queries)) / float64(queried)
		}
		if relevance > 1 {
			relevance = 1
		}
		overlap := relevance * 100
		out = append(out, analysis.IdentifiedCompetitor{
			Domain:      domain,
			DisplayName: st.display,
			Category:    i.categorize(relevance),
			Relevance:   relevance,
			OverlapPct:  &overlap,
		})
	}

	out = i.forceKnown(out, known, brand)

	sort.Slice(out, func(a, b int) bool {
		if out[a].Relevance != out[b].Relevance {
			return out[a].Relevance > out[b].Relevance
		}
		return out[a].Domain < out[b].Domain
	})
	out = truncateKeepingKnown(out, cfg.TopM)
	return out, warnings, nil
}

// forceKnown merges the user's known competitors in, bumping any that
// would land below secondary.
func (i *Identifier) forceKnown(out []analysis.IdentifiedCompetitor, known []string, brand string) []analysis.IdentifiedCompetitor {
	for _, raw := range known {
		domain := analysis.NormalizeDomain(raw)
		if domain == "" || domain == brand {
			continue
		}
		found := false
		for idx := range out {
			if out[idx].Domain == domain {
				out[idx].Confirmed = true
				if out[idx].Category == analysis.CategoryNiche {
					out[idx].Category = analysis.CategorySecondary
				}
				found = true
				break
			}
		}
		if !found {
			out = append(out, analysis.IdentifiedCompetitor{
				Domain:      domain,
				DisplayName: domain,
				Category:    analysis.CategorySecondary,
				Relevance:   0,
				Confirmed:   true,
			})
		}
	}
	return out
}

func (i *Identifier) categorize(relevance float64) analysis.CompetitorCategory {
	switch {
	case relevance >= i.cfg.PrimaryThreshold:
		return analysis.CategoryPrimary
	case relevance >= i.cfg.SecondaryThreshold:
		return analysis.CategorySecondary
	case relevance >= i.cfg.EmergingThreshold:
		return analysis.CategoryEmerging
	default:
		return analysis.CategoryNiche
	}
}

// truncateKeepingKnown keeps the top m by the incoming sort order but
// never drops a known (confirmed) competitor.
func truncateKeepingKnown(rows []analysis.IdentifiedCompetitor, m int) []analysis.IdentifiedCompetitor {
	if len(rows) <= m {
		return rows
	}
	kept := make([]analysis.IdentifiedCompetitor, 0, m)
	for _, r := range rows {
		if len(kept) < m || r.Confirmed {
			kept = append(kept, r)
		}
	}
	return kept
}

func queryTerms(keywords []analysis.DiscoveredKeyword, n int) []string {
	if len(keywords) > n {
		keywords = keywords[:n]
	}
	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		terms = append(terms, k.NormalizedText)
	}
	return terms
}

func displayName(r analysis.SearchResult, domain string) string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return domain
}
