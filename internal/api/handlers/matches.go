package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// MatchesHandler handles match record HTTP requests.
type MatchesHandler struct {
	*Base
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo storage.Repository) *MatchesHandler {
	return &MatchesHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/matches - returns matches with optional filters.
// Supported query parameters: run_id, match_type, requires_review, limit, offset.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.MatchFilters{
		RunID:          r.URL.Query().Get("run_id"),
		MatchType:      r.URL.Query().Get("match_type"),
		RequiresReview: ParseBoolParam(r, "requires_review"),
		Limit:          ParseIntParam(r, "limit", 100),
		Offset:         ParseIntParam(r, "offset", 0),
	}

	result, err := h.repo.ListMatches(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toMatchListResponse(result, filters.Limit, filters.Offset))
}

// Get handles GET /api/matches/{id} - returns a single match by ID.
func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid match ID"))
		return
	}

	match, err := h.repo.GetMatch(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("match"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toMatchResponse(match))
}

func toMatchListResponse(result *storage.MatchListResult, limit, offset int) dto.MatchListResponse {
	response := dto.MatchListResponse{
		Matches: make([]dto.MatchResponse, 0, len(result.Matches)),
		Total:   result.Total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, match := range result.Matches {
		response.Matches = append(response.Matches, toMatchResponse(match))
	}
	return response
}

// toMatchResponse converts a storage MatchRecord to an API response.
// A rationale that fails to decode is omitted rather than failing the request.
func toMatchResponse(match *storage.MatchRecord) dto.MatchResponse {
	response := dto.MatchResponse{
		ID:                  match.ID,
		RunID:               match.RunID,
		PaymentID:           match.PaymentID,
		MatchType:           match.MatchType,
		Confidence:          match.Confidence,
		VarianceCents:       match.VarianceCents,
		VariancePercent:     match.VariancePercent,
		RequiresHumanReview: match.RequiresHumanReview,
		SuggestedAction:     match.SuggestedAction,
		InvoiceIDs:          match.InvoiceIDs,
		JobIDs:              match.JobIDs,
		CreatedAt:           match.CreatedAt.Format(time.RFC3339),
	}

	if rationale, err := match.Rationale(); err == nil {
		resp := dto.RationaleResponse{
			Reason:            rationale.Reason,
			AmountScore:       rationale.AmountScore,
			TimingScore:       rationale.TimingScore,
			VarianceCents:     rationale.VarianceCents,
			KnownFeeCents:     rationale.KnownFeeCents,
			EstimatedFeeCents: rationale.EstimatedFeeCents,
		}
		if rationale.Tiebreak != nil {
			resp.Tiebreak = &dto.TiebreakResponse{
				ComboSize:        rationale.Tiebreak.ComboSize,
				AvgDayDistance:   rationale.Tiebreak.AvgDayDistance,
				AbsVarianceCents: rationale.Tiebreak.AbsVarianceCents,
			}
		}
		response.Rationale = &resp
	}

	return response
}
