package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/brandlens/footprint/internal/analysis"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newJobStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewJobStore(mock, fixedClock{t: testNow})
	require.NoError(t, err)
	return store, mock
}

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	job := analysis.Job{
		ID:     "job-1",
		UserID: "user-1",
		Questionnaire: analysis.Questionnaire{
			BrandName: "Example",
			Website:   "https://example.com",
		},
		Status: analysis.JobStatusInitiated,
	}

	mock.ExpectExec("INSERT INTO analysis_jobs").
		WithArgs(
			job.ID,
			job.UserID,
			[]byte(`{"brand_name":"Example","website":"https://example.com"}`),
			job.Status,
			0,
			"",
			"",
			[]string(nil),
			false,
			testNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobScansRow(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "questionnaire", "status", "progress",
			"summary", "error_text", "warnings", "cancel_requested",
			"created_at", "updated_at", "completed_at",
		}).AddRow(
			"job-1", "user-1",
			[]byte(`{"brand_name":"Example","website":"https://example.com"}`),
			analysis.JobStatusCompleted, 100,
			"done", "", []string{"degraded crawl"}, false,
			testNow, testNow, &testNow,
		))

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "Example", job.Questionnaire.BrandName)
	require.Equal(t, analysis.JobStatusCompleted, job.Status)
	require.Equal(t, []string{"degraded crawl"}, job.Warnings)
	require.NotNil(t, job.Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetJob(context.Background(), "ghost")
	require.ErrorIs(t, err, analysis.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusStampsCompletionOnTerminal(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs(
			analysis.JobStatusFailed, 40, "boom", []string{"w"},
			testNow, true, "job-1",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateJobStatus(context.Background(), "job-1", analysis.JobStatusFailed, 40, "boom", []string{"w"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateJobStatus(context.Background(), "ghost", analysis.JobStatusCrawling, 10, "", nil)
	require.ErrorIs(t, err, analysis.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelRequestedReadsFlag(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectQuery("SELECT cancel_requested FROM analysis_jobs").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"cancel_requested"}).AddRow(true))

	requested, err := store.CancelRequested(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, requested)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJobNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectExec("DELETE FROM analysis_jobs").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteJob(context.Background(), "ghost")
	require.ErrorIs(t, err, analysis.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnfinishedJobsScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	questionnaire := []byte(`{"brand_name":"Example","website":"https://example.com"}`)
	mock.ExpectQuery("SELECT (.+) FROM analysis_jobs").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "questionnaire", "status", "progress",
			"summary", "error_text", "warnings", "cancel_requested",
			"created_at", "updated_at", "completed_at",
		}).
			AddRow("job-1", "u1", questionnaire, analysis.JobStatusInitiated, 0, "", "", []string(nil), false, testNow, testNow, (*time.Time)(nil)).
			AddRow("job-2", "u1", questionnaire, analysis.JobStatusCrawling, 10, "", "", []string(nil), false, testNow, testNow, (*time.Time)(nil)))

	jobs, err := store.ListUnfinishedJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, analysis.JobStatusCrawling, jobs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceKeywordsCommitsTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	rows := []analysis.DiscoveredKeyword{
		{ID: "k1", Text: "Project Management", NormalizedText: "project management", Source: analysis.SourceSiteContent, Relevance: 0.9},
		{ID: "k2", Text: "Team Collaboration", NormalizedText: "team collaboration", Source: analysis.SourceSiteContent, Relevance: 0.7},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM discovered_keywords").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	for _, kw := range rows {
		mock.ExpectExec("INSERT INTO discovered_keywords").
			WithArgs(
				kw.ID, "job-1", kw.Text, kw.NormalizedText, kw.Source,
				kw.Relevance, kw.SearchVolume, kw.Difficulty, kw.Position, kw.Confirmed,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.ReplaceKeywords(context.Background(), "job-1", rows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceKeywordsRollsBackOnInsertError(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM discovered_keywords").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO discovered_keywords").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := store.ReplaceKeywords(context.Background(), "job-1", []analysis.DiscoveredKeyword{
		{ID: "k1", Text: "crm software", NormalizedText: "crm software"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), `insert keyword "crm software"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListKeywordsScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	volume := 1200
	mock.ExpectQuery("SELECT (.+) FROM discovered_keywords").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "job_id", "text", "normalized_text", "source",
			"relevance", "search_volume", "difficulty", "position", "confirmed",
		}).AddRow(
			"k1", "job-1", "Project Management", "project management", analysis.SourceSiteContent,
			0.9, &volume, (*float64)(nil), (*int)(nil), true,
		))

	keywords, err := store.ListKeywords(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	require.Equal(t, "project management", keywords[0].NormalizedText)
	require.NotNil(t, keywords[0].SearchVolume)
	require.Equal(t, 1200, *keywords[0].SearchVolume)
	require.True(t, keywords[0].Confirmed)
	require.NoError(t, mock.ExpectationsWereMet())
}
