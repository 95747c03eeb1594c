package handlers

import (
	"net/http"

	"github.com/fieldbooks/cashrecon/internal/api/dto"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// StatsHandler handles statistics HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate reconciliation statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		TotalRuns:         stats.TotalRuns,
		TotalMatches:      stats.TotalMatches,
		MatchesByType:     stats.MatchesByType,
		AverageConfidence: stats.AverageConfidence,
		PendingReview:     stats.PendingReview,
	}

	h.WriteJSON(w, http.StatusOK, response)
}
