package dto

// StartReconcileResponse is returned when a reconciliation is started.
type StartReconcileResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ReconJobResponse represents a reconciliation job's status.
type ReconJobResponse struct {
	JobID       string                `json:"job_id"`
	Status      string                `json:"status"`
	StartedAt   string                `json:"started_at"`
	CompletedAt *string               `json:"completed_at,omitempty"`
	Progress    ReconProgressResponse `json:"progress"`
	Summary     *SummaryResponse      `json:"summary,omitempty"`
	Error       *string               `json:"error,omitempty"`
}

// ReconProgressResponse represents real-time matching progress.
type ReconProgressResponse struct {
	CurrentPhase    string `json:"current_phase"`
	TotalPayments   int    `json:"total_payments"`
	MatchedPayments int    `json:"matched_payments"`
	LastUpdate      string `json:"last_update"`
}

// SummaryResponse represents the final run summary.
type SummaryResponse struct {
	TotalPayments         int     `json:"total_payments"`
	HighConfidenceMatches int     `json:"high_confidence_matches"`
	RequiresReview        int     `json:"requires_review"`
	MatchRatePercent      float64 `json:"match_rate_percent"`
}

// ActiveJobsResponse lists active reconciliation jobs.
type ActiveJobsResponse struct {
	Jobs  []ReconJobResponse `json:"jobs"`
	Count int                `json:"count"`
}
