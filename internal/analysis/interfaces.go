package analysis

import (
	"context"
	"time"
)

// PageFetcher fetches a single URL and returns the raw document.
// Implementations live under internal/fetcher and are fully replaceable.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (PageContent, error)
}

// SearchProvider returns ranked search results for a keyword query.
// It may be absent; the orchestrator degrades per the fallback policy.
type SearchProvider interface {
	Search(ctx context.Context, keyword string, limit int) ([]SearchResult, error)
}

// Cache is a shared read-through TTL cache. Writes are last-writer-wins;
// staleness is bounded by the TTL, never corruption.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// JobStore persists analysis jobs and their child collections.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, progress int, errText string, warnings []string) error
	SetJobSummary(ctx context.Context, jobID string, summary string) error
	RequestCancel(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	DeleteJob(ctx context.Context, jobID string) error
	ListUnfinishedJobs(ctx context.Context) ([]Job, error)

	ReplaceKeywords(ctx context.Context, jobID string, rows []DiscoveredKeyword) error
	ReplaceCompetitors(ctx context.Context, jobID string, rows []IdentifiedCompetitor) error
	ReplaceOpportunities(ctx context.Context, jobID string, rows []ContentOpportunity) error
	ListKeywords(ctx context.Context, jobID string) ([]DiscoveredKeyword, error)
	ListCompetitors(ctx context.Context, jobID string) ([]IdentifiedCompetitor, error)
	ListOpportunities(ctx context.Context, jobID string) ([]ContentOpportunity, error)
}

// TargetTx is the write surface available inside one import transaction.
// Lookups are tenant-scoped; all writes are tagged with a batch id.
type TargetTx interface {
	FindKeywordByText(ctx context.Context, tenantID, normalizedText string) (TargetKeyword, bool, error)
	InsertKeyword(ctx context.Context, row TargetKeyword) error
	UpdateKeyword(ctx context.Context, row TargetKeyword) error
	DeleteKeyword(ctx context.Context, id string) error

	FindCompetitorByDomain(ctx context.Context, tenantID, domain string) (TargetCompetitor, bool, error)
	InsertCompetitor(ctx context.Context, row TargetCompetitor) error
	UpdateCompetitor(ctx context.Context, row TargetCompetitor) error
	DeleteCompetitor(ctx context.Context, id string) error

	InsertOpportunity(ctx context.Context, row TargetOpportunity) error

	DeleteRowsByBatch(ctx context.Context, tenantID, batchID string) (int, error)
}

// TargetStore runs a function inside one atomic, tenant-serialized
// transaction. If fn returns an error nothing is committed.
type TargetStore interface {
	RunInTenantTx(ctx context.Context, tenantID string, fn func(tx TargetTx) error) error
	CountKeywords(ctx context.Context, tenantID string) (int, error)
	CountCompetitors(ctx context.Context, tenantID string) (int, error)
}

// BatchStore persists import batch audit records.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch ImportBatch) error
	UpdateBatch(ctx context.Context, batch ImportBatch) error
	GetBatch(ctx context.Context, batchID string) (ImportBatch, error)
}

// BlobStore writes raw artifacts (archived pages, exports) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes lifecycle events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for analysis jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for cache keys and archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque identifiers (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
