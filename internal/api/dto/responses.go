package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	ID                    string  `json:"id"`
	StartedAt             string  `json:"started_at"`
	CompletedAt           string  `json:"completed_at,omitempty"`
	Status                string  `json:"status"`
	PaymentCount          int     `json:"payment_count"`
	InvoiceCount          int     `json:"invoice_count"`
	SkippedInvoices       int     `json:"skipped_invoices"`
	HighConfidenceMatches int     `json:"high_confidence_matches"`
	RequiresReview        int     `json:"requires_review"`
	MatchRatePercent      float64 `json:"match_rate_percent"`
	ErrorMessage          string  `json:"error_message,omitempty"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// RationaleResponse explains how a match's confidence was derived.
type RationaleResponse struct {
	Reason            string            `json:"reason"`
	AmountScore       float64           `json:"amount_score,omitempty"`
	TimingScore       float64           `json:"timing_score,omitempty"`
	VarianceCents     int64             `json:"variance_cents"`
	KnownFeeCents     int64             `json:"known_fee_cents,omitempty"`
	EstimatedFeeCents int64             `json:"estimated_fee_cents,omitempty"`
	Tiebreak          *TiebreakResponse `json:"tiebreak,omitempty"`
}

// TiebreakResponse carries the scores used to rank bundled combinations.
type TiebreakResponse struct {
	ComboSize        int     `json:"combo_size"`
	AvgDayDistance   float64 `json:"avg_day_distance"`
	AbsVarianceCents int64   `json:"abs_variance_cents"`
}

// MatchResponse represents a payment match in API responses.
type MatchResponse struct {
	ID                  int64              `json:"id"`
	RunID               string             `json:"run_id"`
	PaymentID           string             `json:"payment_id"`
	MatchType           string             `json:"match_type"`
	Confidence          float64            `json:"confidence"`
	VarianceCents       int64              `json:"variance_cents"`
	VariancePercent     float64            `json:"variance_percent"`
	RequiresHumanReview bool               `json:"requires_human_review"`
	SuggestedAction     string             `json:"suggested_action"`
	InvoiceIDs          []string           `json:"invoice_ids"`
	JobIDs              []string           `json:"job_ids"`
	Rationale           *RationaleResponse `json:"rationale,omitempty"`
	CreatedAt           string             `json:"created_at"`
}

// MatchListResponse is returned when listing matches.
type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ReviewDecisionResponse represents a recorded review decision.
type ReviewDecisionResponse struct {
	ID        int64  `json:"id"`
	MatchID   int64  `json:"match_id"`
	Decision  string `json:"decision"`
	Reviewer  string `json:"reviewer"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ReviewDecisionListResponse is returned when listing a match's decisions.
type ReviewDecisionListResponse struct {
	Decisions []ReviewDecisionResponse `json:"decisions"`
	Count     int                      `json:"count"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	TotalRuns         int            `json:"total_runs"`
	TotalMatches      int            `json:"total_matches"`
	MatchesByType     map[string]int `json:"matches_by_type"`
	AverageConfidence float64        `json:"average_confidence"`
	PendingReview     int            `json:"pending_review"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
