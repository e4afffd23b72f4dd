package gaps

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func coveredCorpus() analysis.Corpus {
	return analysis.Corpus{
		Pages: []analysis.Page{{
			URL:      "https://example.com/",
			Title:    "Project Management Software",
			Headings: []string{"Team Collaboration Tools"},
			Body:     "long body text",
		}},
	}
}

func TestGenerateSkipsCoveredKeywords(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	out := g.Generate([]analysis.DiscoveredKeyword{
		{Text: "project management", NormalizedText: "project management", Source: analysis.SourceSiteContent, Relevance: 1},
		{Text: "time tracking", NormalizedText: "time tracking", Source: analysis.SourceSiteContent, Relevance: 1},
	}, coveredCorpus())

	require.Len(t, out, 1)
	require.Equal(t, "time tracking", out[0].Title)
	require.Equal(t, analysis.GapMissingContent, out[0].GapType)
}

func TestGenerateGapTypes(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	out := g.Generate([]analysis.DiscoveredKeyword{
		// One component term ("management") is covered, one is not.
		{Text: "management consulting", NormalizedText: "management consulting", Source: analysis.SourceSiteContent, Relevance: 1},
		{Text: "resource planning", NormalizedText: "resource planning", Source: analysis.SourceSearchResult, Relevance: 1},
		{Text: "billing", NormalizedText: "billing", Source: analysis.SourceSiteContent, Relevance: 1},
	}, coveredCorpus())

	byTitle := map[string]analysis.ContentOpportunity{}
	for _, op := range out {
		byTitle[op.Title] = op
	}
	require.Equal(t, analysis.GapWeakContent, byTitle["management consulting"].GapType)
	require.Equal(t, analysis.GapCompetitorStrength, byTitle["resource planning"].GapType)
	require.Equal(t, analysis.GapMissingContent, byTitle["billing"].GapType)
}

func TestGeneratePriorityBands(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	out := g.Generate([]analysis.DiscoveredKeyword{
		{Text: "alpha", NormalizedText: "alpha", Relevance: 1, SearchVolume: intPtr(1000)},
		{Text: "bravo", NormalizedText: "bravo", Relevance: 1, SearchVolume: intPtr(500)},
		{Text: "charlie", NormalizedText: "charlie", Relevance: 1, SearchVolume: intPtr(100)},
	}, analysis.Corpus{})

	require.Len(t, out, 3)
	// 0.7*1.0 + 0.3*0.5 = 0.85
	require.Equal(t, analysis.PriorityHigh, out[0].Priority)
	require.Equal(t, "alpha", out[0].Title)
	// 0.7*0.5 + 0.3*0.5 = 0.50
	require.Equal(t, analysis.PriorityMedium, out[1].Priority)
	// 0.7*0.1 + 0.3*0.5 = 0.22
	require.Equal(t, analysis.PriorityLow, out[2].Priority)
}

func TestGenerateDifficultyFromKeyword(t *testing.T) {
	t.Parallel()

	g := New(Config{DefaultDifficulty: 40})
	out := g.Generate([]analysis.DiscoveredKeyword{
		{Text: "known", NormalizedText: "known", Relevance: 1, Difficulty: floatPtr(0.9)},
		{Text: "unknown", NormalizedText: "unknown", Relevance: 1},
	}, analysis.Corpus{})

	byTitle := map[string]analysis.ContentOpportunity{}
	for _, op := range out {
		byTitle[op.Title] = op
	}
	require.Equal(t, 90, byTitle["known"].Difficulty)
	require.Equal(t, 40, byTitle["unknown"].Difficulty)
}

func TestGenerateFormatRecommendation(t *testing.T) {
	t.Parallel()

	g := New(Config{})
	out := g.Generate([]analysis.DiscoveredKeyword{
		{Text: "how to deploy", NormalizedText: "how to deploy", Relevance: 1},
		{Text: "jira vs asana", NormalizedText: "jira vs asana", Relevance: 1},
		{Text: "kanban tutorial", NormalizedText: "kanban tutorial", Relevance: 1},
		{Text: "remote work statistics", NormalizedText: "remote work statistics", Relevance: 1},
		{Text: "enterprise rollout", NormalizedText: "enterprise rollout", Relevance: 1},
		{Text: "plain topic", NormalizedText: "plain topic", Relevance: 1},
	}, analysis.Corpus{})

	byTitle := map[string]analysis.ContentFormat{}
	for _, op := range out {
		byTitle[op.Title] = op.Format
	}
	require.Equal(t, analysis.FormatBlog, byTitle["how to deploy"])
	require.Equal(t, analysis.FormatGuide, byTitle["jira vs asana"])
	require.Equal(t, analysis.FormatVideo, byTitle["kanban tutorial"])
	require.Equal(t, analysis.FormatInfographic, byTitle["remote work statistics"])
	require.Equal(t, analysis.FormatWhitepaper, byTitle["enterprise rollout"])
	require.Equal(t, analysis.FormatBlog, byTitle["plain topic"])
}

func TestGenerateTruncatesAndOrdersDeterministically(t *testing.T) {
	t.Parallel()

	keywords := []analysis.DiscoveredKeyword{
		{Text: "delta", NormalizedText: "delta", Relevance: 1, SearchVolume: intPtr(100)},
		{Text: "charlie", NormalizedText: "charlie", Relevance: 1, SearchVolume: intPtr(100)},
		{Text: "bravo", NormalizedText: "bravo", Relevance: 1, SearchVolume: intPtr(900)},
		{Text: "alpha", NormalizedText: "alpha", Relevance: 1, SearchVolume: intPtr(50)},
	}

	g := New(Config{TopK: 3})
	out := g.Generate(keywords, analysis.Corpus{})
	require.Len(t, out, 3)
	// Highest traffic first, then alphabetical among ties.
	require.Equal(t, "bravo", out[0].Title)
	require.Equal(t, "charlie", out[1].Title)
	require.Equal(t, "delta", out[2].Title)

	again := g.Generate(keywords, analysis.Corpus{})
	require.Equal(t, out, again)
}
