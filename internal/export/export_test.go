package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func seededStores(t *testing.T) (*memory.JobStore, *memory.BlobStore) {
	t.Helper()
	ctx := context.Background()
	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	jobs := memory.NewJobStore(clock)

	require.NoError(t, jobs.CreateJob(ctx, analysis.Job{ID: "job-1", Status: analysis.JobStatusInitiated}))
	require.NoError(t, jobs.UpdateJobStatus(ctx, "job-1", analysis.JobStatusCompletedWithWarnings, 100, "", []string{"degraded crawl"}))

	vol := 1200
	require.NoError(t, jobs.ReplaceKeywords(ctx, "job-1", []analysis.DiscoveredKeyword{
		{ID: "k1", JobID: "job-1", Text: "Project Management", NormalizedText: "project management", Source: analysis.SourceSiteContent, Relevance: 0.9123, SearchVolume: &vol, Confirmed: true},
	}))
	overlap := 62.5
	require.NoError(t, jobs.ReplaceCompetitors(ctx, "job-1", []analysis.IdentifiedCompetitor{
		{ID: "c1", JobID: "job-1", Domain: "rival.com", Category: analysis.CategoryPrimary, Relevance: 0.75, OverlapPct: &overlap},
	}))
	require.NoError(t, jobs.ReplaceOpportunities(ctx, "job-1", []analysis.ContentOpportunity{
		{ID: "o1", JobID: "job-1", Title: "kanban guide", GapType: analysis.GapMissingContent, TrafficPotential: 800, Difficulty: 45, Priority: analysis.PriorityHigh, Format: analysis.FormatGuide},
	}))
	return jobs, memory.NewBlobStore()
}

func TestExportJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs, blobs := seededStores(t)
	e := New(jobs, blobs)

	uri, err := e.Export(ctx, "job-1", FormatJSON)
	require.NoError(t, err)
	require.Equal(t, "mem://exports/job-1/results.json", uri)

	data, ok := blobs.Object("exports/job-1/results.json")
	require.True(t, ok)

	var results analysis.JobResults
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results.Keywords, 1)
	require.Equal(t, "Project Management", results.Keywords[0].Text)
	require.Len(t, results.Competitors, 1)
	require.Len(t, results.Opportunities, 1)
	require.Equal(t, []string{"degraded crawl"}, results.Warnings)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs, blobs := seededStores(t)
	e := New(jobs, blobs)

	uri, err := e.Export(ctx, "job-1", FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "mem://exports/job-1/results.csv", uri)

	data, ok := blobs.Object("exports/job-1/results.csv")
	require.True(t, ok)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "type", rows[0][0])

	require.Equal(t, []string{"keyword", "Project Management", "site-content", "0.9123", "1200", "", "", "true"}, rows[1])
	require.Equal(t, "competitor", rows[2][0])
	require.Equal(t, "rival.com", rows[2][1])
	require.Equal(t, "62.50", rows[2][5])
	require.Equal(t, "opportunity", rows[3][0])
	require.Equal(t, "kanban guide", rows[3][1])
}

func TestExportRequiresSucceededJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clock := fixedClock{t: time.Now()}
	jobs := memory.NewJobStore(clock)
	require.NoError(t, jobs.CreateJob(ctx, analysis.Job{ID: "job-1", Status: analysis.JobStatusCrawling}))
	e := New(jobs, memory.NewBlobStore())

	_, err := e.Export(ctx, "job-1", FormatJSON)
	require.ErrorIs(t, err, analysis.ErrNotReady)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	jobs, blobs := seededStores(t)
	e := New(jobs, blobs)

	_, err := e.Export(context.Background(), "job-1", Format("xml"))
	require.True(t, analysis.IsKind(err, analysis.KindInvalidInput))
}

func TestExportUnknownJob(t *testing.T) {
	t.Parallel()

	jobs, blobs := seededStores(t)
	e := New(jobs, blobs)

	_, err := e.Export(context.Background(), "ghost", FormatJSON)
	require.ErrorIs(t, err, analysis.ErrJobNotFound)
}
