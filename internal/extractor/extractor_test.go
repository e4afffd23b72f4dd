package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
)

func testCorpus() analysis.Corpus {
	body := strings.Repeat("analytics platform ", 10) +
		"reporting dashboards automation workflow integration pipeline telemetry observability " +
		"deployment container orchestration monitoring alerting visualization"
	return analysis.Corpus{
		BaseURL: "https://example.com",
		Pages: []analysis.Page{
			{
				URL:      "https://example.com/",
				Title:    "Analytics Platform",
				Headings: []string{"Realtime Insights"},
				Body:     body,
			},
			{
				URL:      "https://example.com/features",
				Title:    "Features",
				Headings: []string{"Analytics Platform"},
				Body:     "reporting exports scheduling notifications webhooks " + body,
			},
		},
	}
}

func findKeyword(t *testing.T, rows []analysis.DiscoveredKeyword, norm string) analysis.DiscoveredKeyword {
	t.Helper()
	for _, kw := range rows {
		if kw.NormalizedText == norm {
			return kw
		}
	}
	t.Fatalf("keyword %q not found in %d rows", norm, len(rows))
	return analysis.DiscoveredKeyword{}
}

func TestExtractHeadingTermOutranksBodyTerm(t *testing.T) {
	t.Parallel()

	e := New(Config{TopK: 500}, nil)
	corpus := analysis.Corpus{
		BaseURL: "https://example.com",
		Pages: []analysis.Page{{
			URL:      "https://example.com/",
			Headings: []string{"telemetry"},
			Body: "observability alpha bravo charlie delta echo foxtrot golf hotel " +
				"india juliett kilo lima mike november oscar papa quebec romeo sierra " +
				"tango uniform victor whiskey xray yankee zulu anchor beacon compass drift",
		}},
	}

	rows, err := e.Extract(corpus, nil)
	require.NoError(t, err)

	heading := findKeyword(t, rows, "telemetry")
	body := findKeyword(t, rows, "observability")
	require.Greater(t, heading.Relevance, body.Relevance,
		"a heading-only term must outrank the same-frequency body term")
}

func TestExtractScoresAreNormalized(t *testing.T) {
	t.Parallel()

	e := New(Config{}, nil)
	rows, err := e.Extract(testCorpus(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, kw := range rows {
		require.GreaterOrEqual(t, kw.Relevance, 0.0)
		require.LessOrEqual(t, kw.Relevance, 1.0)
	}
}

func TestExtractUserKeywordAbsentFromCorpus(t *testing.T) {
	t.Parallel()

	e := New(Config{UserFloor: 0.8}, nil)
	rows, err := e.Extract(testCorpus(), []string{"Quantum Widgets"})
	require.NoError(t, err)

	kw := findKeyword(t, rows, "quantum widgets")
	require.Equal(t, analysis.SourceUserSupplied, kw.Source)
	require.InDelta(t, 0.8, kw.Relevance, 1e-9)
	require.Equal(t, "Quantum Widgets", kw.Text)
}

func TestExtractUserKeywordPresentKeepsSiteSourceAndFloors(t *testing.T) {
	t.Parallel()

	e := New(Config{UserFloor: 0.8}, nil)
	// "dashboards" appears once against the heavily repeated
	// "analytics", so its organic score is well below the floor.
	rows, err := e.Extract(testCorpus(), []string{"dashboards"})
	require.NoError(t, err)

	kw := findKeyword(t, rows, "dashboards")
	require.Equal(t, analysis.SourceSiteContent, kw.Source)
	require.GreaterOrEqual(t, kw.Relevance, 0.8)
}

func TestExtractDeduplicatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	e := New(Config{}, nil)
	rows, err := e.Extract(testCorpus(), []string{"ANALYTICS", "analytics"})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, kw := range rows {
		seen[kw.NormalizedText]++
	}
	require.Equal(t, 1, seen["analytics"])
}

func TestExtractInsufficientCorpus(t *testing.T) {
	t.Parallel()

	e := New(Config{MinCorpusTokens: 30}, nil)
	corpus := analysis.Corpus{Pages: []analysis.Page{{Body: "too small"}}}

	_, err := e.Extract(corpus, []string{"brand"})
	require.Error(t, err)
	require.True(t, analysis.IsKind(err, analysis.KindInsufficientData))
}

func TestExtractTruncatesToTopK(t *testing.T) {
	t.Parallel()

	e := New(Config{TopK: 3}, nil)
	rows, err := e.Extract(testCorpus(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Descending by relevance.
	for i := 1; i < len(rows); i++ {
		require.GreaterOrEqual(t, rows[i-1].Relevance, rows[i].Relevance)
	}
}

func TestUserOnly(t *testing.T) {
	t.Parallel()

	e := New(Config{UserFloor: 0.8}, nil)
	rows := e.UserOnly([]string{"  spaced   out  ", "Spaced Out", ""})
	require.Len(t, rows, 1)
	require.Equal(t, "spaced out", rows[0].NormalizedText)
	require.Equal(t, analysis.SourceUserSupplied, rows[0].Source)
	require.InDelta(t, 0.8, rows[0].Relevance, 1e-9)
}

func TestExtractDeterministicOrder(t *testing.T) {
	t.Parallel()

	e := New(Config{}, nil)
	first, err := e.Extract(testCorpus(), []string{"pipeline"})
	require.NoError(t, err)
	second, err := e.Extract(testCorpus(), []string{"pipeline"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
