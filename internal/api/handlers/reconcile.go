package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldbooks/cashrecon/internal/adapters/feed"
	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/application/service"
)

// ReconcileHandler handles reconciliation job HTTP requests.
type ReconcileHandler struct {
	*Base
	reconService *service.ReconService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(reconService *service.ReconService) *ReconcileHandler {
	return &ReconcileHandler{
		Base:         &Base{},
		reconService: reconService,
	}
}

// Start handles POST /api/reconcile - starts a new reconciliation job.
// The payment and invoice payloads go through the same validation as the
// file feeds, so a malformed payment rejects the request up front.
func (h *ReconcileHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if len(req.Payments) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("payments are required"))
		return
	}
	if len(req.Invoices) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("invoices are required"))
		return
	}

	payments, err := feed.ParsePayments(bytes.NewReader(req.Payments))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(fmt.Sprintf("payments: %v", err)))
		return
	}
	invoices, skipped, err := feed.ParseInvoices(bytes.NewReader(req.Invoices))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(fmt.Sprintf("invoices: %v", err)))
		return
	}

	jobID, err := h.reconService.StartReconciliation(r.Context(), service.ReconRequest{
		Payments:        payments,
		Invoices:        invoices,
		SkippedInvoices: skipped,
	})
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartReconcileResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	})
}

// Status handles GET /api/reconcile/{jobId} - gets a job's status.
func (h *ReconcileHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	job, err := h.reconService.GetJob(jobID)
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("reconciliation job"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toReconJobResponse(job))
}

// ListActive handles GET /api/reconcile/active - lists running jobs.
func (h *ReconcileHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	jobs := h.reconService.ListActiveJobs()

	response := dto.ActiveJobsResponse{
		Jobs:  make([]dto.ReconJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toReconJobResponse(job))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Cancel handles DELETE /api/reconcile/{jobId} - cancels a running job.
func (h *ReconcileHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	if err := h.reconService.CancelRun(jobID); err != nil {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "Reconciliation job cancelled successfully",
	})
}

// toReconJobResponse converts a service job to an API response.
func toReconJobResponse(job *service.ReconJob) dto.ReconJobResponse {
	response := dto.ReconJobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.ReconProgressResponse{
			CurrentPhase:    job.Progress.CurrentPhase,
			TotalPayments:   job.Progress.TotalPayments,
			MatchedPayments: job.Progress.MatchedPayments,
			LastUpdate:      job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}
	if job.Result != nil {
		response.Summary = &dto.SummaryResponse{
			TotalPayments:         job.Result.Summary.TotalPayments,
			HighConfidenceMatches: job.Result.Summary.HighConfidenceMatches,
			RequiresReview:        job.Result.Summary.RequiresReview,
			MatchRatePercent:      job.Result.Summary.MatchRatePercent,
		}
	}
	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}
