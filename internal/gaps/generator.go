// Package gaps cross-references extracted keywords against site coverage
// and produces prioritized content opportunities.
package gaps

import (
	"sort"
	"strings"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config tunes gap generation. All inputs being equal, output is
// deterministic regardless of tuning.
type Config struct {
	TopK              int
	DefaultDifficulty int
	TrafficWeight     float64
	DifficultyWeight  float64
	HighThreshold     float64
	MediumThreshold   float64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.DefaultDifficulty <= 0 {
		c.DefaultDifficulty = 50
	}
	if c.TrafficWeight <= 0 {
		c.TrafficWeight = 0.7
	}
	if c.DifficultyWeight <= 0 {
		c.DifficultyWeight = 0.3
	}
	if c.HighThreshold <= 0 {
		c.HighThreshold = 0.66
	}
	if c.MediumThreshold <= 0 {
		c.MediumThreshold = 0.33
	}
	return c
}

// Generator emits content opportunities for keywords the site does not cover.
type Generator struct {
	cfg Config
}

// New constructs a Generator.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg.withDefaults()}
}

// Generate returns the top opportunities for keywords not represented in
// the corpus, ordered by priority then traffic potential.
func (g *Generator) Generate(keywords []analysis.DiscoveredKeyword, corpus analysis.Corpus) []analysis.ContentOpportunity {
	coverage := buildCoverage(corpus)

	type scored struct {
		op      analysis.ContentOpportunity
		score   float64
		norm    string
		traffic int
	}
	var candidates []scored
	maxTraffic := 0
	for _, kw := range keywords {
		cov := coverage.classify(kw.NormalizedText)
		if cov == fullyCovered {
			continue
		}
		traffic := trafficPotential(kw)
		if traffic > maxTraffic {
			maxTraffic = traffic
		}
		candidates = append(candidates, scored{
			op: analysis.ContentOpportunity{
				Title:            kw.Text,
				GapType:          gapType(kw, cov),
				TrafficPotential: traffic,
				Difficulty:       difficultyOf(kw, g.cfg.DefaultDifficulty),
				Format:           recommendFormat(kw.NormalizedText),
			},
			norm:    kw.NormalizedText,
			traffic: traffic,
		})
	}

	for i := range candidates {
		normTraffic := 0.0
		if maxTraffic > 0 {
			normTraffic = float64(candidates[i].traffic) / float64(maxTraffic)
		}
		inverseDifficulty := 1 - float64(candidates[i].op.Difficulty)/100
		candidates[i].score = g.cfg.TrafficWeight*normTraffic + g.cfg.DifficultyWeight*inverseDifficulty
		candidates[i].op.Priority = g.band(candidates[i].score)
	}

	sort.Slice(candidates, func(a, b int) bool {
		pa, pb := priorityRank(candidates[a].op.Priority), priorityRank(candidates[b].op.Priority)
		if pa != pb {
			return pa < pb
		}
		if candidates[a].traffic != candidates[b].traffic {
			return candidates[a].traffic > candidates[b].traffic
		}
		return candidates[a].norm < candidates[b].norm
	})
	if len(candidates) > g.cfg.TopK {
		candidates = candidates[:g.cfg.TopK]
	}
	out := make([]analysis.ContentOpportunity, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.op)
	}
	return out
}

func (g *Generator) band(score float64) analysis.Priority {
	switch {
	case score >= g.cfg.HighThreshold:
		return analysis.PriorityHigh
	case score >= g.cfg.MediumThreshold:
		return analysis.PriorityMedium
	default:
		return analysis.PriorityLow
	}
}

func priorityRank(p analysis.Priority) int {
	switch p {
	case analysis.PriorityHigh:
		return 0
	case analysis.PriorityMedium:
		return 1
	default:
		return 2
	}
}

// trafficPotential is volume times relevance, zero when volume is unknown.
func trafficPotential(kw analysis.DiscoveredKeyword) int {
	if kw.SearchVolume == nil {
		return 0
	}
	return int(float64(*kw.SearchVolume) * kw.Relevance)
}

func difficultyOf(kw analysis.DiscoveredKeyword, fallback int) int {
	if kw.Difficulty == nil {
		return fallback
	}
	d := int(*kw.Difficulty * 100)
	if d < 0 {
		d = 0
	}
	if d > 100 {
		d = 100
	}
	return d
}

type coverageLevel int

const (
	notCovered coverageLevel = iota
	partiallyCovered
	fullyCovered
)

// coverageIndex holds the prominent (title + heading) text of the site.
type coverageIndex struct {
	prominent []string
}

func buildCoverage(corpus analysis.Corpus) coverageIndex {
	var idx coverageIndex
	for _, p := range corpus.Pages {
		if t := strings.ToLower(p.Title); t != "" {
			idx.prominent = append(idx.prominent, t)
		}
		for _, h := range p.Headings {
			idx.prominent = append(idx.prominent, strings.ToLower(h))
		}
	}
	return idx
}

// classify checks the keyword (then its component terms) against the
// site's title and heading text.
func (c coverageIndex) classify(norm string) coverageLevel {
	if c.contains(norm) {
		return fullyCovered
	}
	terms := strings.Fields(norm)
	if len(terms) < 2 {
		return notCovered
	}
	found := 0
	for _, t := range terms {
		if c.contains(t) {
			found++
		}
	}
	switch {
	case found == len(terms):
		return fullyCovered
	case found > 0:
		return partiallyCovered
	default:
		return notCovered
	}
}

func (c coverageIndex) contains(needle string) bool {
	for _, text := range c.prominent {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func gapType(kw analysis.DiscoveredKeyword, cov coverageLevel) analysis.GapType {
	if kw.Source == analysis.SourceSearchResult {
		return analysis.GapCompetitorStrength
	}
	if cov == partiallyCovered {
		return analysis.GapWeakContent
	}
	return analysis.GapMissingContent
}

// recommendFormat picks a content format from simple keyword patterns.
func recommendFormat(norm string) analysis.ContentFormat {
	switch {
	case strings.HasPrefix(norm, "how to") || strings.HasPrefix(norm, "how-to"):
		return analysis.FormatBlog
	case strings.Contains(norm, " vs ") || strings.Contains(norm, "comparison") || strings.HasPrefix(norm, "best "):
		return analysis.FormatGuide
	case strings.Contains(norm, "demo") || strings.Contains(norm, "tutorial") || strings.Contains(norm, "walkthrough"):
		return analysis.FormatVideo
	case strings.Contains(norm, "statistics") || strings.Contains(norm, "stats") || strings.Contains(norm, "trends"):
		return analysis.FormatInfographic
	case strings.Contains(norm, "case study") || strings.Contains(norm, "success story"):
		return analysis.FormatCaseStudy
	case strings.Contains(norm, "enterprise") || strings.Contains(norm, "b2b") || strings.Contains(norm, "whitepaper"):
		return analysis.FormatWhitepaper
	default:
		return analysis.FormatBlog
	}
}
