package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/brandlens/footprint/internal/analysis"
)

// JobStore implements analysis.JobStore on Postgres.
type JobStore struct {
	db    DB
	clock analysis.Clock
}

// NewJobStore wraps an open pool.
func NewJobStore(db DB, clock analysis.Clock) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &JobStore{db: db, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

func (s *JobStore) CreateJob(ctx context.Context, job analysis.Job) error {
	questionnaire, err := json.Marshal(job.Questionnaire)
	if err != nil {
		return fmt.Errorf("marshal questionnaire: %w", err)
	}
	now := s.clock.Now()
	query := `
		INSERT INTO analysis_jobs (
			id, user_id, questionnaire, status, progress,
			summary, error_text, warnings, cancel_requested,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10);
	`
	_, err = s.db.Exec(ctx, query,
		job.ID, job.UserID, questionnaire, job.Status, job.Progress,
		job.Summary, job.ErrorText, job.Warnings, job.CancelRequested, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (analysis.Job, error) {
	query := `
		SELECT id, user_id, questionnaire, status, progress,
			summary, error_text, warnings, cancel_requested,
			created_at, updated_at, completed_at
		FROM analysis_jobs
		WHERE id = $1;
	`
	var (
		job           analysis.Job
		questionnaire []byte
	)
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &job.UserID, &questionnaire, &job.Status, &job.Progress,
		&job.Summary, &job.ErrorText, &job.Warnings, &job.CancelRequested,
		&job.Created, &job.Updated, &job.Completed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return analysis.Job{}, analysis.ErrJobNotFound
		}
		return analysis.Job{}, fmt.Errorf("get job: %w", err)
	}
	if err := json.Unmarshal(questionnaire, &job.Questionnaire); err != nil {
		return analysis.Job{}, fmt.Errorf("unmarshal questionnaire: %w", err)
	}
	return job, nil
}

func (s *JobStore) UpdateJobStatus(ctx context.Context, jobID string, status analysis.JobStatus, progress int, errText string, warnings []string) error {
	query := `
		UPDATE analysis_jobs
		SET status = $1, progress = $2, error_text = $3, warnings = $4,
			updated_at = $5,
			completed_at = CASE WHEN $6 THEN $5 ELSE completed_at END
		WHERE id = $7;
	`
	tag, err := s.db.Exec(ctx, query,
		status, progress, errText, warnings,
		s.clock.Now(), status.IsTerminal(), jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) SetJobSummary(ctx context.Context, jobID string, summary string) error {
	query := `UPDATE analysis_jobs SET summary = $1, updated_at = $2 WHERE id = $3;`
	tag, err := s.db.Exec(ctx, query, summary, s.clock.Now(), jobID)
	if err != nil {
		return fmt.Errorf("set job summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) RequestCancel(ctx context.Context, jobID string) error {
	query := `UPDATE analysis_jobs SET cancel_requested = TRUE, updated_at = $1 WHERE id = $2;`
	tag, err := s.db.Exec(ctx, query, s.clock.Now(), jobID)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	var requested bool
	err := s.db.QueryRow(ctx, `SELECT cancel_requested FROM analysis_jobs WHERE id = $1;`, jobID).Scan(&requested)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, analysis.ErrJobNotFound
		}
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return requested, nil
}

// DeleteJob removes the job row; child rows cascade via foreign keys.
func (s *JobStore) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM analysis_jobs WHERE id = $1;`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return analysis.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) ListUnfinishedJobs(ctx context.Context) ([]analysis.Job, error) {
	query := `
		SELECT id, user_id, questionnaire, status, progress,
			summary, error_text, warnings, cancel_requested,
			created_at, updated_at, completed_at
		FROM analysis_jobs
		WHERE status NOT IN ('completed', 'completed_with_warnings', 'failed')
		ORDER BY created_at;
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unfinished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []analysis.Job
	for rows.Next() {
		var (
			job           analysis.Job
			questionnaire []byte
		)
		err := rows.Scan(
			&job.ID, &job.UserID, &questionnaire, &job.Status, &job.Progress,
			&job.Summary, &job.ErrorText, &job.Warnings, &job.CancelRequested,
			&job.Created, &job.Updated, &job.Completed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		if err := json.Unmarshal(questionnaire, &job.Questionnaire); err != nil {
			return nil, fmt.Errorf("unmarshal questionnaire: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ReplaceKeywords swaps a job's keyword rows inside one transaction so
// readers never observe a partially written set.
func (s *JobStore) ReplaceKeywords(ctx context.Context, jobID string, rows []analysis.DiscoveredKeyword) error {
	return s.replaceChildRows(ctx, jobID, "discovered_keywords", func(ctx context.Context, tx pgx.Tx) error {
		for _, kw := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO discovered_keywords (
					id, job_id, text, normalized_text, source,
					relevance, search_volume, difficulty, position, confirmed
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`,
				kw.ID, jobID, kw.Text, kw.NormalizedText, kw.Source,
				kw.Relevance, kw.SearchVolume, kw.Difficulty, kw.Position, kw.Confirmed,
			)
			if err != nil {
				return fmt.Errorf("insert keyword %q: %w", kw.Text, err)
			}
		}
		return nil
	})
}

func (s *JobStore) ReplaceCompetitors(ctx context.Context, jobID string, rows []analysis.IdentifiedCompetitor) error {
	return s.replaceChildRows(ctx, jobID, "identified_competitors", func(ctx context.Context, tx pgx.Tx) error {
		for _, comp := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO identified_competitors (
					id, job_id, domain, display_name, category,
					relevance, overlap_pct, confirmed
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`,
				comp.ID, jobID, comp.Domain, comp.DisplayName, comp.Category,
				comp.Relevance, comp.OverlapPct, comp.Confirmed,
			)
			if err != nil {
				return fmt.Errorf("insert competitor %q: %w", comp.Domain, err)
			}
		}
		return nil
	})
}

func (s *JobStore) ReplaceOpportunities(ctx context.Context, jobID string, rows []analysis.ContentOpportunity) error {
	return s.replaceChildRows(ctx, jobID, "content_opportunities", func(ctx context.Context, tx pgx.Tx) error {
		for _, opp := range rows {
			_, err := tx.Exec(ctx, `
				INSERT INTO content_opportunities (
					id, job_id, title, gap_type, traffic_potential,
					difficulty, priority, format
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`,
				opp.ID, jobID, opp.Title, opp.GapType, opp.TrafficPotential,
				opp.Difficulty, opp.Priority, opp.Format,
			)
			if err != nil {
				return fmt.Errorf("insert opportunity %q: %w", opp.Title, err)
			}
		}
		return nil
	})
}

func (s *JobStore) replaceChildRows(ctx context.Context, jobID, table string, insert func(context.Context, pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE job_id = $1;`, table), jobID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insert(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace %s: %w", table, err)
	}
	return nil
}

func (s *JobStore) ListKeywords(ctx context.Context, jobID string) ([]analysis.DiscoveredKeyword, error) {
	query := `
		SELECT id, job_id, text, normalized_text, source,
			relevance, search_volume, difficulty, position, confirmed
		FROM discovered_keywords
		WHERE job_id = $1
		ORDER BY relevance DESC, normalized_text;
	`
	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	var out []analysis.DiscoveredKeyword
	for rows.Next() {
		var kw analysis.DiscoveredKeyword
		err := rows.Scan(
			&kw.ID, &kw.JobID, &kw.Text, &kw.NormalizedText, &kw.Source,
			&kw.Relevance, &kw.SearchVolume, &kw.Difficulty, &kw.Position, &kw.Confirmed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

func (s *JobStore) ListCompetitors(ctx context.Context, jobID string) ([]analysis.IdentifiedCompetitor, error) {
	query := `
		SELECT id, job_id, domain, display_name, category,
			relevance, overlap_pct, confirmed
		FROM identified_competitors
		WHERE job_id = $1
		ORDER BY relevance DESC, domain;
	`
	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var out []analysis.IdentifiedCompetitor
	for rows.Next() {
		var comp analysis.IdentifiedCompetitor
		err := rows.Scan(
			&comp.ID, &comp.JobID, &comp.Domain, &comp.DisplayName, &comp.Category,
			&comp.Relevance, &comp.OverlapPct, &comp.Confirmed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan competitor row: %w", err)
		}
		out = append(out, comp)
	}
	return out, rows.Err()
}

func (s *JobStore) ListOpportunities(ctx context.Context, jobID string) ([]analysis.ContentOpportunity, error) {
	query := `
		SELECT id, job_id, title, gap_type, traffic_potential,
			difficulty, priority, format
		FROM content_opportunities
		WHERE job_id = $1
		ORDER BY traffic_potential DESC, title;
	`
	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []analysis.ContentOpportunity
	for rows.Next() {
		var opp analysis.ContentOpportunity
		err := rows.Scan(
			&opp.ID, &opp.JobID, &opp.Title, &opp.GapType, &opp.TrafficPotential,
			&opp.Difficulty, &opp.Priority, &opp.Format,
		)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}
