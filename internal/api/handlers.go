package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/export"
)

type createAnalysisRequest struct {
	UserID        string                 `json:"user_id"`
	Questionnaire analysis.Questionnaire `json:"questionnaire"`
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateQuestionnaire(req.Questionnaire); err != nil {
		// Validation failures never create a job record.
		s.writeMappedError(w, err)
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	job := analysis.Job{
		ID:            jobID,
		UserID:        req.UserID,
		Questionnaire: req.Questionnaire,
		Status:        analysis.JobStatusInitiated,
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		s.writeMappedError(w, err)
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := analysis.QueueItem{
		JobID:     jobID,
		Attempt:   1,
		Submitted: s.clock.Now().Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(analysis.JobStatusInitiated),
	})
}

// validateQuestionnaire enforces the intake contract: a brand name and
// a well-formed http(s) website are mandatory.
func validateQuestionnaire(q analysis.Questionnaire) error {
	if strings.TrimSpace(q.BrandName) == "" {
		return analysis.InvalidInput("brand_name is required")
	}
	site := strings.TrimSpace(q.Website)
	if site == "" {
		return analysis.InvalidInput("website is required")
	}
	u, err := url.Parse(site)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return analysis.InvalidInput("website must be an absolute http(s) URL")
	}
	for _, kw := range q.TargetKeywords {
		if strings.TrimSpace(kw) == "" {
			return analysis.InvalidInput("target_keywords must not contain empty entries")
		}
	}
	for _, comp := range q.KnownCompetitors {
		if strings.TrimSpace(comp) == "" {
			return analysis.InvalidInput("known_competitors must not contain empty entries")
		}
	}
	return nil
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobStore.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, job)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"job_id":       job.ID,
		"status":       job.Status,
		"progress":     job.Progress,
		"summary":      job.Summary,
		"error":        job.ErrorText,
		"warnings":     job.Warnings,
		"created_at":   job.Created,
		"updated_at":   job.Updated,
		"completed_at": job.Completed,
	})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if !job.Status.Succeeded() {
		s.writeMappedError(w, analysis.ErrNotReady)
		return
	}
	keywords, err := s.jobStore.ListKeywords(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	competitors, err := s.jobStore.ListCompetitors(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	opportunities, err := s.jobStore.ListOpportunities(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, analysis.JobResults{
		Keywords:      keywords,
		Competitors:   competitors,
		Opportunities: opportunities,
		Warnings:      job.Warnings,
	})
}

func (s *Server) exportResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}
	uri, err := s.exporter.Export(r.Context(), jobID, format)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"uri": uri})
}

// cancelAnalysis flags the job; the orchestrator honors the flag at the
// next stage boundary.
func (s *Server) cancelAnalysis(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if job.Status.IsTerminal() {
		writeError(s.logger, w, http.StatusConflict, "job already finished")
		return
	}
	if err := s.jobStore.RequestCancel(r.Context(), jobID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "cancel_requested",
	})
}

type confirmRequest struct {
	TenantID  string                  `json:"tenant_id"`
	Strategy  analysis.ImportStrategy `json:"strategy"`
	Selection analysis.Selection      `json:"selection"`
}

// confirmSelection marks the chosen keywords and competitors confirmed
// on the job, then runs the same selection through the import engine
// for the tenant and answers with the resulting batch.
func (s *Server) confirmSelection(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if !job.Status.Succeeded() {
		s.writeMappedError(w, analysis.ErrNotReady)
		return
	}
	if err := s.markConfirmed(r.Context(), jobID, req.Selection); err != nil {
		s.writeMappedError(w, err)
		return
	}

	batch, err := s.importer.Import(r.Context(), jobID, req.Selection, req.TenantID, req.Strategy)
	if err != nil {
		if batch.ID != "" && batch.Status == analysis.BatchFailed {
			writeJSON(s.logger, w, http.StatusUnprocessableEntity, batch)
			return
		}
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusCreated, batch)
}

// markConfirmed flips the Confirmed flag on the selected keyword and
// competitor rows. Every selected id must belong to the job.
func (s *Server) markConfirmed(ctx context.Context, jobID string, sel analysis.Selection) error {
	keywords, err := s.jobStore.ListKeywords(ctx, jobID)
	if err != nil {
		return err
	}
	competitors, err := s.jobStore.ListCompetitors(ctx, jobID)
	if err != nil {
		return err
	}

	wantKw := toSet(sel.KeywordIDs)
	matchedKw := 0
	for i := range keywords {
		if _, ok := wantKw[keywords[i].ID]; ok {
			keywords[i].Confirmed = true
			matchedKw++
		}
	}
	wantComp := toSet(sel.CompetitorIDs)
	matchedComp := 0
	for i := range competitors {
		if _, ok := wantComp[competitors[i].ID]; ok {
			competitors[i].Confirmed = true
			matchedComp++
		}
	}
	if matchedKw != len(sel.KeywordIDs) || matchedComp != len(sel.CompetitorIDs) {
		return analysis.InvalidInput("selection references rows that do not belong to the job")
	}

	if err := s.jobStore.ReplaceKeywords(ctx, jobID, keywords); err != nil {
		return err
	}
	return s.jobStore.ReplaceCompetitors(ctx, jobID, competitors)
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (s *Server) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if !job.Status.IsTerminal() {
		writeError(s.logger, w, http.StatusConflict, "job is still running; cancel it first")
		return
	}
	if err := s.jobStore.DeleteJob(r.Context(), jobID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createImportRequest struct {
	JobID     string                  `json:"job_id"`
	TenantID  string                  `json:"tenant_id"`
	Strategy  analysis.ImportStrategy `json:"strategy"`
	Selection analysis.Selection      `json:"selection"`
}

func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	batch, err := s.importer.Import(r.Context(), req.JobID, req.Selection, req.TenantID, req.Strategy)
	if err != nil {
		if batch.ID != "" && batch.Status == analysis.BatchFailed {
			// The batch record exists; surface it with the failure.
			writeJSON(s.logger, w, http.StatusUnprocessableEntity, batch)
			return
		}
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusCreated, batch)
}

func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	batch, err := s.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, batch)
}

func (s *Server) rollbackImport(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	summary, err := s.importer.Rollback(r.Context(), batchID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, summary)
}
