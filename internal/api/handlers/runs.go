package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent reconciliation runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// toRunResponse converts a storage ReconRun to an API response.
func toRunResponse(run *storage.ReconRun) dto.RunResponse {
	response := dto.RunResponse{
		ID:                    run.ID,
		StartedAt:             run.StartedAt.Format(time.RFC3339),
		Status:                run.Status,
		PaymentCount:          run.PaymentCount,
		InvoiceCount:          run.InvoiceCount,
		SkippedInvoices:       run.SkippedInvoices,
		HighConfidenceMatches: run.HighConfidenceMatches,
		RequiresReview:        run.RequiresReview,
		MatchRatePercent:      run.MatchRatePercent,
		ErrorMessage:          run.ErrorMessage,
	}
	if run.CompletedAt != nil {
		response.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return response
}
