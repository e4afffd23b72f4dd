// Package memory provides in-memory store implementations used in
// tests and single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/brandlens/footprint/internal/analysis"
)

// JobStore keeps jobs and their child rows in process memory.
type JobStore struct {
	clock analysis.Clock

	mu            sync.RWMutex
	jobs          map[string]analysis.Job
	keywords      map[string][]analysis.DiscoveredKeyword
	competitors   map[string][]analysis.IdentifiedCompetitor
	opportunities map[string][]analysis.ContentOpportunity
}

// NewJobStore creates an empty JobStore.
func NewJobStore(clock analysis.Clock) *JobStore {
	return &JobStore{
		clock:         clock,
		jobs:          map[string]analysis.Job{},
		keywords:      map[string][]analysis.DiscoveredKeyword{},
		competitors:   map[string][]analysis.IdentifiedCompetitor{},
		opportunities: map[string][]analysis.ContentOpportunity{},
	}
}

func (s *JobStore) CreateJob(_ context.Context, job analysis.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	job.Created = now
	job.Updated = now
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) GetJob(_ context.Context, jobID string) (analysis.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return analysis.Job{}, analysis.ErrJobNotFound
	}
	return job, nil
}

func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status analysis.JobStatus, progress int, errText string, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return analysis.ErrJobNotFound
	}
	job.Status = status
	job.Progress = progress
	job.ErrorText = errText
	job.Warnings = warnings
	job.Updated = s.clock.Now()
	if status.IsTerminal() {
		done := s.clock.Now()
		job.Completed = &done
	}
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) SetJobSummary(_ context.Context, jobID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return analysis.ErrJobNotFound
	}
	job.Summary = summary
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) RequestCancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return analysis.ErrJobNotFound
	}
	job.CancelRequested = true
	job.Updated = s.clock.Now()
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) CancelRequested(_ context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, analysis.ErrJobNotFound
	}
	return job.CancelRequested, nil
}

// DeleteJob removes the job and cascades to its child collections.
func (s *JobStore) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return analysis.ErrJobNotFound
	}
	delete(s.jobs, jobID)
	delete(s.keywords, jobID)
	delete(s.competitors, jobID)
	delete(s.opportunities, jobID)
	return nil
}

func (s *JobStore) ListUnfinishedJobs(_ context.Context) ([]analysis.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []analysis.Job
	for _, job := range s.jobs {
		if !job.Status.IsTerminal() {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *JobStore) ReplaceKeywords(_ context.Context, jobID string, rows []analysis.DiscoveredKeyword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return analysis.ErrJobNotFound
	}
	s.keywords[jobID] = append([]analysis.DiscoveredKeyword(nil), rows...)
	return nil
}

func (s *JobStore) ReplaceCompetitors(_ context.Context, jobID string, rows []analysis.IdentifiedCompetitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return analysis.ErrJobNotFound
	}
	s.competitors[jobID] = append([]analysis.IdentifiedCompetitor(nil), rows...)
	return nil
}

func (s *JobStore) ReplaceOpportunities(_ context.Context, jobID string, rows []analysis.ContentOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return analysis.ErrJobNotFound
	}
	s.opportunities[jobID] = append([]analysis.ContentOpportunity(nil), rows...)
	return nil
}

func (s *JobStore) ListKeywords(_ context.Context, jobID string) ([]analysis.DiscoveredKeyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, analysis.ErrJobNotFound
	}
	return append([]analysis.DiscoveredKeyword(nil), s.keywords[jobID]...), nil
}

func (s *JobStore) ListCompetitors(_ context.Context, jobID string) ([]analysis.IdentifiedCompetitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, analysis.ErrJobNotFound
	}
	return append([]analysis.IdentifiedCompetitor(nil), s.competitors[jobID]...), nil
}

func (s *JobStore) ListOpportunities(_ context.Context, jobID string) ([]analysis.ContentOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, analysis.ErrJobNotFound
	}
	return append([]analysis.ContentOpportunity(nil), s.opportunities[jobID]...), nil
}
