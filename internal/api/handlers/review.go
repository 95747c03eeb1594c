package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// ReviewHandler handles the human review queue.
type ReviewHandler struct {
	*Base
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(repo storage.Repository) *ReviewHandler {
	return &ReviewHandler{
		Base: NewBase(repo),
	}
}

// Queue handles GET /api/review - returns flagged matches awaiting a decision,
// lowest confidence first.
func (h *ReviewHandler) Queue(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 100)
	offset := ParseIntParam(r, "offset", 0)

	result, err := h.repo.ListReviewQueue(limit, offset)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toMatchListResponse(result, limit, offset))
}

// Decide handles POST /api/matches/{id}/review - records a review decision.
func (h *ReviewHandler) Decide(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid match ID"))
		return
	}

	var req dto.ReviewDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	switch req.Decision {
	case storage.DecisionApproved, storage.DecisionRejected, storage.DecisionReassigned:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("decision must be approved, rejected or reassigned"))
		return
	}
	if req.Reviewer == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("reviewer is required"))
		return
	}

	decision := &storage.ReviewDecision{
		MatchID:  matchID,
		Decision: req.Decision,
		Reviewer: req.Reviewer,
		Notes:    req.Notes,
	}

	err = h.repo.SaveReviewDecision(decision)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("match"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, toDecisionResponse(decision))
}

// Decisions handles GET /api/matches/{id}/review - returns recorded decisions.
func (h *ReviewHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid match ID"))
		return
	}

	decisions, err := h.repo.GetReviewDecisions(matchID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ReviewDecisionListResponse{
		Decisions: make([]dto.ReviewDecisionResponse, 0, len(decisions)),
		Count:     len(decisions),
	}
	for _, d := range decisions {
		response.Decisions = append(response.Decisions, toDecisionResponse(d))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toDecisionResponse(d *storage.ReviewDecision) dto.ReviewDecisionResponse {
	return dto.ReviewDecisionResponse{
		ID:        d.ID,
		MatchID:   d.MatchID,
		Decision:  d.Decision,
		Reviewer:  d.Reviewer,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
