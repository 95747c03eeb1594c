package dto

import "encoding/json"

// StartReconcileRequest is the request body for starting a reconciliation.
// Payments and invoices are passed through the feed parsers, so they use
// the same wire format as the file feeds.
type StartReconcileRequest struct {
	Payments json.RawMessage `json:"payments"`
	Invoices json.RawMessage `json:"invoices"`
}

// ReviewDecisionRequest is the request body for recording a review decision.
type ReviewDecisionRequest struct {
	Decision string `json:"decision"` // "approved", "rejected", "reassigned"
	Reviewer string `json:"reviewer"`
	Notes    string `json:"notes"`
}
