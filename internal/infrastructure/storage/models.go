package storage

import (
	"encoding/json"
	"time"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
)

// ReconRun tracks one reconciliation run over a payment/invoice feed.
type ReconRun struct {
	ID                    string     `json:"id"`
	StartedAt             time.Time  `json:"started_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	Status                string     `json:"status"`
	PaymentCount          int        `json:"payment_count"`
	InvoiceCount          int        `json:"invoice_count"`
	SkippedInvoices       int        `json:"skipped_invoices"`
	HighConfidenceMatches int        `json:"high_confidence_matches"`
	RequiresReview        int        `json:"requires_review"`
	MatchRatePercent      float64    `json:"match_rate_percent"`
	ErrorMessage          string     `json:"error_message,omitempty"`
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// MatchRecord is a persisted PaymentMatch, one row per payment per run.
type MatchRecord struct {
	ID                  int64     `json:"id"`
	RunID               string    `json:"run_id"`
	PaymentID           string    `json:"payment_id"`
	MatchType           string    `json:"match_type"`
	Confidence          float64   `json:"confidence"`
	VarianceCents       int64     `json:"variance_cents"`
	VariancePercent     float64   `json:"variance_percent"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	SuggestedAction     string    `json:"suggested_action"`
	InvoiceIDs          []string  `json:"invoice_ids"`
	JobIDs              []string  `json:"job_ids"`
	CreatedAt           time.Time `json:"created_at"`

	// Rationale stored as JSON; explanatory only.
	RationaleJSON string `json:"-"`
}

// NewMatchRecord converts a core PaymentMatch into its persisted form.
func NewMatchRecord(runID string, m reconcile.PaymentMatch) *MatchRecord {
	rationale, _ := json.Marshal(m.Rationale)
	return &MatchRecord{
		RunID:               runID,
		PaymentID:           m.PaymentID,
		MatchType:           string(m.MatchType),
		Confidence:          m.Confidence,
		VarianceCents:       m.VarianceCents,
		VariancePercent:     m.VariancePercent,
		RequiresHumanReview: m.RequiresHumanReview,
		SuggestedAction:     string(m.SuggestedAction),
		InvoiceIDs:          m.InvoiceIDs,
		JobIDs:              m.JobIDs,
		RationaleJSON:       string(rationale),
	}
}

// Rationale decodes the stored rationale.
func (r *MatchRecord) Rationale() (reconcile.Rationale, error) {
	var rationale reconcile.Rationale
	if r.RationaleJSON == "" {
		return rationale, nil
	}
	err := json.Unmarshal([]byte(r.RationaleJSON), &rationale)
	return rationale, err
}

// ReviewDecision records a bookkeeper's call on a flagged match.
type ReviewDecision struct {
	ID        int64     `json:"id"`
	MatchID   int64     `json:"match_id"`
	Decision  string    `json:"decision"`
	Reviewer  string    `json:"reviewer"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Review decision constants
const (
	DecisionApproved   = "approved"
	DecisionRejected   = "rejected"
	DecisionReassigned = "reassigned"
)

// MatchFilters defines filters for listing match records
type MatchFilters struct {
	RunID          string // empty = all runs
	MatchType      string // empty = all types
	RequiresReview *bool  // nil = both
	Limit          int    // 0 = default 100
	Offset         int
}

// MatchListResult contains paginated match results
type MatchListResult struct {
	Matches []*MatchRecord `json:"matches"`
	Total   int            `json:"total"`
}

// Stats contains aggregate reconciliation statistics
type Stats struct {
	TotalRuns         int            `json:"total_runs"`
	TotalMatches      int            `json:"total_matches"`
	MatchesByType     map[string]int `json:"matches_by_type"`
	AverageConfidence float64        `json:"average_confidence"`
	PendingReview     int            `json:"pending_review"`
}
