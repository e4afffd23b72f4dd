// Package export renders confirmed analysis results as CSV or JSON
// artifacts and writes them to the blob store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/brandlens/footprint/internal/analysis"
)

// Format selects the artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Valid reports whether the format is supported.
func (f Format) Valid() bool {
	return f == FormatJSON || f == FormatCSV
}

// Exporter writes result artifacts.
type Exporter struct {
	jobs  analysis.JobStore
	blobs analysis.BlobStore
}

// New constructs an Exporter.
func New(jobs analysis.JobStore, blobs analysis.BlobStore) *Exporter {
	return &Exporter{jobs: jobs, blobs: blobs}
}

// Export renders the job's results in the given format and returns the
// artifact URI. Only succeeded jobs can be exported.
func (e *Exporter) Export(ctx context.Context, jobID string, format Format) (string, error) {
	if !format.Valid() {
		return "", analysis.InvalidInput(fmt.Sprintf("unknown export format %q", format))
	}
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if !job.Status.Succeeded() {
		return "", analysis.ErrNotReady
	}

	results, err := e.loadResults(ctx, jobID)
	if err != nil {
		return "", err
	}
	results.Warnings = job.Warnings

	var (
		data        []byte
		contentType string
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal results: %w", err)
		}
		contentType = "application/json"
	case FormatCSV:
		data, err = renderCSV(results)
		if err != nil {
			return "", err
		}
		contentType = "text/csv"
	}

	path := fmt.Sprintf("exports/%s/results.%s", jobID, format)
	uri, err := e.blobs.PutObject(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return uri, nil
}

func (e *Exporter) loadResults(ctx context.Context, jobID string) (analysis.JobResults, error) {
	keywords, err := e.jobs.ListKeywords(ctx, jobID)
	if err != nil {
		return analysis.JobResults{}, fmt.Errorf("list keywords: %w", err)
	}
	competitors, err := e.jobs.ListCompetitors(ctx, jobID)
	if err != nil {
		return analysis.JobResults{}, fmt.Errorf("list competitors: %w", err)
	}
	opportunities, err := e.jobs.ListOpportunities(ctx, jobID)
	if err != nil {
		return analysis.JobResults{}, fmt.Errorf("list opportunities: %w", err)
	}
	return analysis.JobResults{
		Keywords:      keywords,
		Competitors:   competitors,
		Opportunities: opportunities,
	}, nil
}

// renderCSV emits three record groups separated by a type column, so a
// single artifact carries the full result set.
func renderCSV(results analysis.JobResults) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"type", "text", "source", "relevance", "search_volume", "difficulty", "position", "confirmed"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, kw := range results.Keywords {
		row := []string{
			"keyword", kw.Text, string(kw.Source),
			strconv.FormatFloat(kw.Relevance, 'f', 4, 64),
			optInt(kw.SearchVolume), optFloat(kw.Difficulty), optInt(kw.Position),
			strconv.FormatBool(kw.Confirmed),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write keyword row: %w", err)
		}
	}
	for _, comp := range results.Competitors {
		row := []string{
			"competitor", comp.Domain, string(comp.Category),
			strconv.FormatFloat(comp.Relevance, 'f', 4, 64),
			"", optFloat(comp.OverlapPct), "",
			strconv.FormatBool(comp.Confirmed),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write competitor row: %w", err)
		}
	}
	for _, opp := range results.Opportunities {
		row := []string{
			"opportunity", opp.Title, string(opp.GapType),
			string(opp.Priority),
			strconv.Itoa(opp.TrafficPotential), strconv.Itoa(opp.Difficulty),
			string(opp.Format), "",
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write opportunity row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
