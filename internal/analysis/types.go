// Package analysis defines core types shared across the footprint pipeline.
package analysis

import (
	"time"
)

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

// Job status values persisted in the job store. Transitions are strictly
// forward; completed, completed_with_warnings and failed are terminal.
const (
	JobStatusInitiated             JobStatus = "initiated"
	JobStatusCrawling              JobStatus = "crawling"
	JobStatusAnalyzing             JobStatus = "analyzing"
	JobStatusProcessing            JobStatus = "processing"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusCompletedWithWarnings JobStatus = "completed_with_warnings"
	JobStatusFailed                JobStatus = "failed"
)

// IsTerminal reports whether the status allows no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithWarnings, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Succeeded reports whether results may be read for a job in this status.
func (s JobStatus) Succeeded() bool {
	return s == JobStatusCompleted || s == JobStatusCompletedWithWarnings
}

// Questionnaire is the brand intake submitted at job initiation.
type Questionnaire struct {
	BrandName        string   `json:"brand_name"`
	Website          string   `json:"website"`
	Industry         string   `json:"industry,omitempty"`
	TargetMarkets    []string `json:"target_markets,omitempty"`
	KnownCompetitors []string `json:"known_competitors,omitempty"`
	TargetKeywords   []string `json:"target_keywords,omitempty"`
}

// Job is the durable record for one end-to-end analysis run.
type Job struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Questionnaire   Questionnaire `json:"questionnaire"`
	Status          JobStatus     `json:"status"`
	Progress        int           `json:"progress"`
	Summary         string        `json:"summary,omitempty"`
	ErrorText       string        `json:"error_text,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	CancelRequested bool          `json:"cancel_requested"`
	Created         time.Time     `json:"created_at"`
	Updated         time.Time     `json:"updated_at"`
	Completed       *time.Time    `json:"completed_at,omitempty"`
}

// KeywordSource tells where a discovered keyword came from.
type KeywordSource string

const (
	SourceSiteContent  KeywordSource = "site-content"
	SourceSearchResult KeywordSource = "search-result"
	SourceUserSupplied KeywordSource = "user-supplied"
)

// DiscoveredKeyword is one ranked keyword candidate belonging to a job.
// NormalizedText is the lowercase comparison key and is unique per job.
type DiscoveredKeyword struct {
	ID             string        `json:"id"`
	JobID          string        `json:"job_id"`
	Text           string        `json:"text"`
	NormalizedText string        `json:"normalized_text"`
	Source         KeywordSource `json:"source"`
	Relevance      float64       `json:"relevance"`
	SearchVolume   *int          `json:"search_volume,omitempty"`
	Difficulty     *float64      `json:"difficulty,omitempty"`
	Position       *int          `json:"position,omitempty"`
	Confirmed      bool          `json:"confirmed"`
}

// CompetitorCategory buckets competitors by relevance.
type CompetitorCategory string

const (
	CategoryPrimary   CompetitorCategory = "primary"
	CategorySecondary CompetitorCategory = "secondary"
	CategoryEmerging  CompetitorCategory = "emerging"
	CategoryNiche     CompetitorCategory = "niche"
)

// IdentifiedCompetitor is one competitor domain belonging to a job.
// Domain is normalized (scheme and www. stripped, lowercase) and unique per job.
type IdentifiedCompetitor struct {
	ID          string             `json:"id"`
	JobID       string             `json:"job_id"`
	Domain      string             `json:"domain"`
	DisplayName string             `json:"display_name"`
	Category    CompetitorCategory `json:"category"`
	Relevance   float64            `json:"relevance"`
	OverlapPct  *float64           `json:"overlap_pct,omitempty"`
	Confirmed   bool               `json:"confirmed"`
}

// GapType classifies why a content opportunity exists.
type GapType string

const (
	GapMissingContent     GapType = "missing-content"
	GapWeakContent        GapType = "weak-content"
	GapCompetitorStrength GapType = "competitor-strength"
)

// Priority bands an opportunity for triage.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ContentFormat is the recommended shape of the content to produce.
type ContentFormat string

const (
	FormatBlog        ContentFormat = "blog"
	FormatGuide       ContentFormat = "guide"
	FormatVideo       ContentFormat = "video"
	FormatInfographic ContentFormat = "infographic"
	FormatCaseStudy   ContentFormat = "case-study"
	FormatWhitepaper  ContentFormat = "whitepaper"
)

// ContentOpportunity is one prioritized content gap belonging to a job.
type ContentOpportunity struct {
	ID               string        `json:"id"`
	JobID            string        `json:"job_id"`
	Title            string        `json:"title"`
	GapType          GapType       `json:"gap_type"`
	TrafficPotential int           `json:"traffic_potential"`
	Difficulty       int           `json:"difficulty"`
	Priority         Priority      `json:"priority"`
	Format           ContentFormat `json:"format"`
}

// JobResults is the read view of a successful job's output.
type JobResults struct {
	Keywords      []DiscoveredKeyword    `json:"keywords"`
	Competitors   []IdentifiedCompetitor `json:"competitors"`
	Opportunities []ContentOpportunity   `json:"opportunities"`
	Warnings      []string               `json:"warnings,omitempty"`
}

// Page is one successfully fetched and parsed page of the crawl corpus.
// Headings (h1-h3) are kept apart from Body because they weigh more
// during keyword extraction.
type Page struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Headings        []string  `json:"headings"`
	Body            string    `json:"body"`
	FetchedAt       time.Time `json:"fetched_at"`
	ContentHash     string    `json:"content_hash,omitempty"`
	BlobURI         string    `json:"blob_uri,omitempty"`
	// RawHTML is carried in memory for archival only and never serialized.
	RawHTML []byte `json:"-"`
}

// Corpus is the set of pages collected for one crawl.
type Corpus struct {
	BaseURL string `json:"base_url"`
	Pages   []Page `json:"pages"`
}

// PageContent is the raw fetch result produced by a PageFetcher.
type PageContent struct {
	URL        string
	StatusCode int
	HTML       []byte
	Duration   time.Duration
}

// SearchResult is one ranked entry returned by a SearchProvider.
type SearchResult struct {
	Rank   int    `json:"rank"`
	Domain string `json:"domain"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// ImportStrategy selects how duplicates are handled during import.
type ImportStrategy string

const (
	StrategySkip      ImportStrategy = "skip"
	StrategyMerge     ImportStrategy = "merge"
	StrategyReplace   ImportStrategy = "replace"
	StrategyCreateNew ImportStrategy = "create-new"
)

// Valid reports whether the strategy is one of the closed set.
func (s ImportStrategy) Valid() bool {
	switch s {
	case StrategySkip, StrategyMerge, StrategyReplace, StrategyCreateNew:
		return true
	default:
		return false
	}
}

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchInProgress BatchStatus = "in-progress"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchRolledBack BatchStatus = "rolled-back"
)

// ImportCounts tallies one category of an import batch.
type ImportCounts struct {
	Imported           int `json:"imported"`
	DuplicatesDetected int `json:"duplicates_detected"`
	DuplicatesSkipped  int `json:"duplicates_skipped"`
	Errors             int `json:"errors"`
}

// ImportErrorRecord describes one item that could not be imported.
type ImportErrorRecord struct {
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ImportBatch is the audit record and rollback unit for one import.
// It is immutable once completed.
type ImportBatch struct {
	ID            string              `json:"id"`
	JobID         string              `json:"job_id"`
	TenantID      string              `json:"tenant_id"`
	Strategy      ImportStrategy      `json:"strategy"`
	Keywords      ImportCounts        `json:"keywords"`
	Competitors   ImportCounts        `json:"competitors"`
	Opportunities ImportCounts        `json:"opportunities"`
	Errors        []ImportErrorRecord `json:"errors,omitempty"`
	Status        BatchStatus         `json:"status"`
	Started       time.Time           `json:"started_at"`
	Finished      *time.Time          `json:"finished_at,omitempty"`
}

// Selection names the child rows the caller confirmed for import.
type Selection struct {
	KeywordIDs     []string `json:"keyword_ids"`
	CompetitorIDs  []string `json:"competitor_ids"`
	OpportunityIDs []string `json:"opportunity_ids"`
}

// Empty reports whether nothing was selected.
func (s Selection) Empty() bool {
	return len(s.KeywordIDs) == 0 && len(s.CompetitorIDs) == 0 && len(s.OpportunityIDs) == 0
}

// TargetKeyword is a keyword row owned by the target store, scoped to a tenant.
type TargetKeyword struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	Text           string        `json:"text"`
	NormalizedText string        `json:"normalized_text"`
	Source         KeywordSource `json:"source"`
	Relevance      float64       `json:"relevance"`
	SearchVolume   *int          `json:"search_volume,omitempty"`
	Difficulty     *float64      `json:"difficulty,omitempty"`
	Position       *int          `json:"position,omitempty"`
	BatchID        string        `json:"batch_id"`
	Created        time.Time     `json:"created_at"`
	Updated        time.Time     `json:"updated_at"`
}

// TargetCompetitor is a competitor row owned by the target store.
type TargetCompetitor struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id"`
	Domain      string             `json:"domain"`
	DisplayName string             `json:"display_name"`
	Category    CompetitorCategory `json:"category"`
	Relevance   float64            `json:"relevance"`
	OverlapPct  *float64           `json:"overlap_pct,omitempty"`
	BatchID     string             `json:"batch_id"`
	Created     time.Time          `json:"created_at"`
	Updated     time.Time          `json:"updated_at"`
}

// TargetOpportunity is an opportunity row owned by the target store.
type TargetOpportunity struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenant_id"`
	Title            string        `json:"title"`
	GapType          GapType       `json:"gap_type"`
	TrafficPotential int           `json:"traffic_potential"`
	Difficulty       int           `json:"difficulty"`
	Priority         Priority      `json:"priority"`
	Format           ContentFormat `json:"format"`
	BatchID          string        `json:"batch_id"`
	Created          time.Time     `json:"created_at"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Attempt   int
	Submitted int64
}
