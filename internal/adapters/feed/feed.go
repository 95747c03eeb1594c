// Package feed parses the payment and invoice feeds handed over by the
// upstream ingestion jobs. This is the validation boundary: malformed
// amounts and unparseable payment timestamps are rejected here so the
// matching core can assume well-typed input. An invoice with bad dates
// is skipped rather than failing the whole feed, since one bad record
// should not block a reconciliation run.
package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
)

// paymentRecord is the wire shape of one processor payment.
type paymentRecord struct {
	ID           string `json:"id"`
	AmountCents  int64  `json:"amount_cents"`
	FeeCents     int64  `json:"fee_cents"`
	CreatedAt    string `json:"created_at"`
	CustomerHint string `json:"customer_hint"`
}

// invoiceRecord is the wire shape of one open invoice.
type invoiceRecord struct {
	ID       string `json:"id"`
	JobID    string `json:"job_id"`
	Amount   string `json:"amount"`
	PaidDate string `json:"paid_date"`
	DueDate  string `json:"due_date"`
	Customer string `json:"customer"`
}

// timestamp layouts accepted for payment created_at
var timestampLayouts = []string{time.RFC3339, "2006-01-02"}

const dateLayout = "2006-01-02"

// ParsePayments decodes and validates a payment feed.
func ParsePayments(r io.Reader) ([]reconcile.Payment, error) {
	var records []paymentRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding payment feed: %w", err)
	}

	payments := make([]reconcile.Payment, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("payment %d: missing id", i)
		}
		if rec.AmountCents <= 0 {
			return nil, fmt.Errorf("payment %s: amount_cents must be positive, got %d", rec.ID, rec.AmountCents)
		}
		if rec.FeeCents < 0 {
			return nil, fmt.Errorf("payment %s: fee_cents must not be negative, got %d", rec.ID, rec.FeeCents)
		}

		createdAt, err := parseTimestamp(rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("payment %s: %w", rec.ID, err)
		}

		payments = append(payments, reconcile.Payment{
			ID:           rec.ID,
			AmountCents:  rec.AmountCents,
			FeeCents:     rec.FeeCents,
			CreatedAt:    createdAt,
			CustomerHint: rec.CustomerHint,
		})
	}

	return payments, nil
}

// ParseInvoices decodes and validates an invoice feed. Invoices with
// unparseable dates are excluded and counted in skipped.
func ParseInvoices(r io.Reader) (invoices []reconcile.Invoice, skipped int, err error) {
	var records []invoiceRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, 0, fmt.Errorf("decoding invoice feed: %w", err)
	}

	invoices = make([]reconcile.Invoice, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, 0, fmt.Errorf("invoice %d: missing id", i)
		}

		amount, err := decimal.NewFromString(rec.Amount)
		if err != nil {
			return nil, 0, fmt.Errorf("invoice %s: bad amount %q", rec.ID, rec.Amount)
		}

		paidDate, paidOK := parseDate(rec.PaidDate)
		dueDate, dueOK := parseDate(rec.DueDate)
		if !paidOK || !dueOK {
			skipped++
			continue
		}

		invoices = append(invoices, reconcile.Invoice{
			ID:       rec.ID,
			JobID:    rec.JobID,
			Amount:   amount,
			PaidDate: paidDate,
			DueDate:  dueDate,
			Customer: rec.Customer,
		})
	}

	return invoices, skipped, nil
}

// LoadPayments reads a payment feed from a file.
func LoadPayments(path string) ([]reconcile.Payment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ParsePayments(f)
}

// LoadInvoices reads an invoice feed from a file.
func LoadInvoices(path string) ([]reconcile.Invoice, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()
	return ParseInvoices(f)
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad created_at %q", value)
}

// parseDate parses an optional date field. Empty is fine (nil date);
// a present but malformed value is not.
func parseDate(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, false
	}
	return &t, true
}
