// Package extractor scores and ranks candidate keywords from a crawl corpus.
//
// Two passes run over the corpus: single terms weighted by a tf-idf
// formulation, and 2/3-word phrase windows weighted by component
// frequency and position. Heading occurrences count more than body
// occurrences in both passes.
package extractor

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
)

// Config tunes the extraction passes.
type Config struct {
	TopK            int
	HeadingBoost    float64
	UserFloor       float64
	MinCorpusTokens int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 50
	}
	if c.HeadingBoost < 1 {
		c.HeadingBoost = 2.0
	}
	if c.UserFloor <= 0 {
		c.UserFloor = 0.8
	}
	if c.MinCorpusTokens <= 0 {
		c.MinCorpusTokens = 30
	}
	return c
}

// Extractor runs the two extraction passes and merges their rankings.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg.withDefaults(), logger: logger}
}

// pageTokens splits one page into heading-weighted and body token streams.
// The title and meta description count as heading text.
type pageTokens struct {
	heading []string
	body    []string
}

type candidate struct {
	display string
	score   float64
	source  analysis.KeywordSource
}

// Extract returns the ranked, case-insensitively deduplicated keyword
// list for the corpus. User-supplied target keywords are force-included
// with their score floored at cfg.UserFloor. InsufficientData is returned
// when the corpus is too small to score; callers degrade to
// user-supplied terms only.
func (e *Extractor) Extract(corpus analysis.Corpus, userKeywords []string) ([]analysis.DiscoveredKeyword, error) {
	pages := tokenizePages(corpus)
	total := 0
	for _, p := range pages {
		total += len(p.heading) + len(p.body)
	}
	if total < e.cfg.MinCorpusTokens {
		return nil, analysis.InsufficientData("corpus too small for keyword extraction")
	}

	display := displayForms(corpus)
	merged := map[string]candidate{}

	upsert := func(norm string, score float64, source analysis.KeywordSource) {
		cur, ok := merged[norm]
		if !ok {
			disp := display[norm]
			if disp == "" {
				disp = norm
			}
			merged[norm] = candidate{display: disp, score: score, source: source}
			return
		}
		if score > cur.score {
			cur.score = score
			cur.source = source
			merged[norm] = cur
		}
	}

	for norm, score := range normalizeScores(e.termScores(pages)) {
		upsert(norm, score, analysis.SourceSiteContent)
	}
	for norm, score := range normalizeScores(e.phraseScores(pages)) {
		upsert(norm, score, analysis.SourceSiteContent)
	}

	for _, raw := range userKeywords {
		norm := analysis.NormalizeKeyword(raw)
		if norm == "" {
			continue
		}
		if cur, ok := merged[norm]; ok {
			if cur.score < e.cfg.UserFloor {
				cur.score = e.cfg.UserFloor
				merged[norm] = cur
			}
			continue
		}
		merged[norm] = candidate{display: strings.Join(strings.Fields(raw), " "), score: e.cfg.UserFloor, source: analysis.SourceUserSupplied}
	}

	return e.rank(merged), nil
}

// UserOnly builds the degraded keyword list when no corpus is available.
func (e *Extractor) UserOnly(userKeywords []string) []analysis.DiscoveredKeyword {
	merged := map[string]candidate{}
	for _, raw := range userKeywords {
		norm := analysis.NormalizeKeyword(raw)
		if norm == "" {
			continue
		}
		if _, ok := merged[norm]; ok {
			continue
		}
		merged[norm] = candidate{display: strings.Join(strings.Fields(raw), " "), score: e.cfg.UserFloor, source: analysis.SourceUserSupplied}
	}
	return e.rank(merged)
}

func (e *Extractor) rank(merged map[string]candidate) []analysis.DiscoveredKeyword {
	norms := make([]string, 0, len(merged))
	for norm := range merged {
		norms = append(norms, norm)
	}
	// Deterministic order: score descending, then alphabetical.
	sort.Slice(norms, func(i, j int) bool {
		a, b := merged[norms[i]], merged[norms[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		return norms[i] < norms[j]
	})
	if len(norms) > e.cfg.TopK {
		norms = norms[:e.cfg.TopK]
	}
	out := make([]analysis.DiscoveredKeyword, 0, len(norms))
	for _, norm := range norms {
		c := merged[norm]
		out = append(out, analysis.DiscoveredKeyword{
			Text:           c.display,
			NormalizedText: norm,
			Source:         c.source,
			Relevance:      c.score,
		})
	}
	return out
}

// termScores computes the tf-idf weight per single term. Heading
// occurrences are multiplied by the heading boost, so a term found only
// in a heading never ranks below the same term found once in body text.
func (e *Extractor) termScores(pages []pageTokens) map[string]float64 {
	weightedTF := map[string]float64{}
	df := map[string]int{}
	for _, p := range pages {
		inPage := map[string]struct{}{}
		for _, t := range p.heading {
			if isStopword(t) {
				continue
			}
			weightedTF[t] += e.cfg.HeadingBoost
			inPage[t] = struct{}{}
		}
		for _, t := range p.body {
			if isStopword(t) {
				continue
			}
			weightedTF[t]++
			inPage[t] = struct{}{}
		}
		for t := range inPage {
			df[t]++
		}
	}
	n := float64(len(pages))
	scores := make(map[string]float64, len(weightedTF))
	for t, tf := range weightedTF {
		scores[t] = tf * math.Log(1+n/float64(df[t]))
	}
	return scores
}

// phraseScores scores contiguous 2- and 3-word windows by the corpus
// frequency of their component terms times a position weight.
func (e *Extractor) phraseScores(pages []pageTokens) map[string]float64 {
	freq := map[string]float64{}
	for _, p := range pages {
		for _, t := range p.heading {
			freq[t]++
		}
		for _, t := range p.body {
			freq[t]++
		}
	}

	scores := map[string]float64{}
	score := func(tokens []string, weight float64) {
		for size := 2; size <= 3; size++ {
			for i := 0; i+size <= len(tokens); i++ {
				window := tokens[i : i+size]
				if windowHasStopword(window) {
					continue
				}
				sum := 0.0
				for _, t := range window {
					sum += freq[t]
				}
				phrase := strings.Join(window, " ")
				scores[phrase] += weight * sum
			}
		}
	}
	for _, p := range pages {
		score(p.heading, e.cfg.HeadingBoost)
		score(p.body, 1)
	}
	return scores
}

func windowHasStopword(window []string) bool {
	for _, t := range window {
		if isStopword(t) {
			return true
		}
	}
	return false
}

// normalizeScores scales a pass's scores into [0,1] by its maximum.
func normalizeScores(scores map[string]float64) map[string]float64 {
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(scores))
	for k, s := range scores {
		out[k] = s / maxScore
	}
	return out
}

func tokenizePages(corpus analysis.Corpus) []pageTokens {
	pages := make([]pageTokens, 0, len(corpus.Pages))
	for _, p := range corpus.Pages {
		pt := pageTokens{heading: tokenize(p.Title)}
		pt.heading = append(pt.heading, tokenize(p.MetaDescription)...)
		for _, h := range p.Headings {
			pt.heading = append(pt.heading, tokenize(h)...)
		}
		pt.body = tokenize(p.Body)
		pages = append(pages, pt)
	}
	return pages
}

// displayForms records the first original-case spelling seen for each
// normalized token and phrase, for display.
func displayForms(corpus analysis.Corpus) map[string]string {
	forms := map[string]string{}
	record := func(text string) {
		words := strings.Fields(text)
		for size := 1; size <= 3; size++ {
			for i := 0; i+size <= len(words); i++ {
				orig := strings.Join(words[i:i+size], " ")
				norm := strings.Join(tokenize(orig), " ")
				if norm == "" {
					continue
				}
				if _, ok := forms[norm]; !ok {
					forms[norm] = strings.Trim(orig, ".,;:!?\"'()")
				}
			}
		}
	}
	for _, p := range corpus.Pages {
		record(p.Title)
		for _, h := range p.Headings {
			record(h)
		}
		record(p.MetaDescription)
		record(p.Body)
	}
	return forms
}
