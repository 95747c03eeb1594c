package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is an incoming processor payment to be explained against open
// invoices. Amounts are integer cents to keep the matching arithmetic free
// of floating-point drift.
type Payment struct {
	ID           string    // processor-assigned identifier, carried through unchanged
	AmountCents  int64     // gross amount
	FeeCents     int64     // processor fee, 0 when unknown
	CreatedAt    time.Time // when the processor recorded the payment
	CustomerHint string    // optional customer identifier from processor metadata
}

// Invoice is an open receivable as supplied by the ledger collaborator.
// Amounts arrive as decimal currency; the matchers convert to cents.
type Invoice struct {
	ID       string
	JobID    string
	Amount   decimal.Decimal
	PaidDate *time.Time // set once upstream marks the invoice paid
	DueDate  *time.Time
	Customer string
}

var cents = decimal.NewFromInt(100)

// AmountCents returns the invoice amount in integer cents, rounded half-up.
func (inv Invoice) AmountCents() int64 {
	return inv.Amount.Mul(cents).Round(0).IntPart()
}

// MatchDate returns the best-known date for matching purposes: the paid
// date when present, otherwise the due date. ok is false when the invoice
// carries neither, in which case it cannot be matched.
func (inv Invoice) MatchDate() (time.Time, bool) {
	if inv.PaidDate != nil {
		return *inv.PaidDate, true
	}
	if inv.DueDate != nil {
		return *inv.DueDate, true
	}
	return time.Time{}, false
}

// Candidate is an invoice that survived filtering for a specific payment,
// annotated with its distance in days from the payment timestamp.
type Candidate struct {
	Invoice     Invoice
	AmountCents int64
	DayDistance float64 // absolute days between invoice date and payment
}

// MatchType tags how a payment was explained. Exactly one per match.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchFuzzy     MatchType = "fuzzy"
	MatchBundled   MatchType = "bundled"
	MatchUnmatched MatchType = "unmatched"
)

// SuggestedAction tells the review UI what to do with a match.
type SuggestedAction string

const (
	ActionAutoMatch           SuggestedAction = "auto_match"
	ActionReviewVariance      SuggestedAction = "review_variance"
	ActionReviewBundled       SuggestedAction = "review_bundled_payment"
	ActionManualInvestigation SuggestedAction = "manual_investigation_required"
)

// TiebreakScore is the ordering tuple exposed for human review of bundled
// matches: fewer invoices, then closer dates, then smaller variance.
// It never alters the combination the search already selected.
type TiebreakScore struct {
	ComboSize        int     `json:"combo_size"`
	AvgDayDistance   float64 `json:"avg_day_distance"`
	AbsVarianceCents int64   `json:"abs_variance_cents"`
}

// Rationale explains how a match was scored. It is diagnostic only:
// nothing downstream may branch on it.
type Rationale struct {
	Reason            string         `json:"reason"`
	AmountScore       float64        `json:"amount_score,omitempty"`
	TimingScore       float64        `json:"timing_score,omitempty"`
	VarianceCents     int64          `json:"variance_cents"`
	KnownFeeCents     int64          `json:"known_fee_cents,omitempty"`
	EstimatedFeeCents int64          `json:"estimated_fee_cents,omitempty"`
	Tiebreak          *TiebreakScore `json:"tiebreak,omitempty"`
}

// PaymentMatch is the computed outcome for one payment. It is a stateless
// projection: produced fresh on every run, persisted (if at all) by the
// caller.
type PaymentMatch struct {
	PaymentID           string          `json:"payment_id"`
	InvoiceIDs          []string        `json:"invoice_ids"`
	JobIDs              []string        `json:"job_ids"`
	Confidence          float64         `json:"confidence"`
	MatchType           MatchType       `json:"match_type"`
	VarianceCents       int64           `json:"variance_cents"`       // payment minus matched total, sign preserved
	VariancePercent     float64         `json:"variance_percent"`     // of the matched invoice total
	RequiresHumanReview bool            `json:"requires_human_review"`
	SuggestedAction     SuggestedAction `json:"suggested_action"`
	Rationale           Rationale       `json:"rationale"`
}

// Summary is the rollup computed after a full run.
type Summary struct {
	TotalPayments         int     `json:"total_payments"`
	HighConfidenceMatches int     `json:"high_confidence_matches"`
	RequiresReview        int     `json:"requires_review"`
	MatchRatePercent      float64 `json:"match_rate_percent"`
}

// Result is the complete output of one reconciliation run.
type Result struct {
	Matches []PaymentMatch `json:"matches"`
	Summary Summary        `json:"summary"`
}
