package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayments(t *testing.T) {
	input := `[
		{"id": "py_1", "amount_cents": 250000, "fee_cents": 7525, "created_at": "2025-01-25T14:30:00Z", "customer_hint": "cust_42"},
		{"id": "py_2", "amount_cents": 97000, "created_at": "2025-01-26"}
	]`

	payments, err := ParsePayments(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "py_1", payments[0].ID)
	assert.Equal(t, int64(250000), payments[0].AmountCents)
	assert.Equal(t, int64(7525), payments[0].FeeCents)
	assert.Equal(t, "cust_42", payments[0].CustomerHint)
	assert.Equal(t, 2025, payments[0].CreatedAt.Year())
	assert.Zero(t, payments[1].FeeCents)
}

func TestParsePayments_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing id", `[{"amount_cents": 100, "created_at": "2025-01-25"}]`},
		{"zero amount", `[{"id": "py_1", "amount_cents": 0, "created_at": "2025-01-25"}]`},
		{"negative fee", `[{"id": "py_1", "amount_cents": 100, "fee_cents": -5, "created_at": "2025-01-25"}]`},
		{"bad timestamp", `[{"id": "py_1", "amount_cents": 100, "created_at": "Jan 25"}]`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayments(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseInvoices(t *testing.T) {
	input := `[
		{"id": "INV_001", "job_id": "JOB_001", "amount": "2500.00", "paid_date": "2025-01-25", "customer": "cust_42"},
		{"id": "INV_002", "job_id": "JOB_002", "amount": "180.50", "due_date": "2025-02-01"}
	]`

	invoices, skipped, err := ParseInvoices(strings.NewReader(input))

	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, invoices, 2)

	assert.Equal(t, "INV_001", invoices[0].ID)
	assert.Equal(t, int64(250000), invoices[0].AmountCents())
	require.NotNil(t, invoices[0].PaidDate)
	assert.Nil(t, invoices[0].DueDate)

	assert.Equal(t, int64(18050), invoices[1].AmountCents())
	assert.Nil(t, invoices[1].PaidDate)
	require.NotNil(t, invoices[1].DueDate)
}

func TestParseInvoices_SkipsBadDates(t *testing.T) {
	input := `[
		{"id": "INV_001", "job_id": "JOB_001", "amount": "100.00", "paid_date": "not-a-date"},
		{"id": "INV_002", "job_id": "JOB_002", "amount": "200.00", "paid_date": "2025-01-25"}
	]`

	invoices, skipped, err := ParseInvoices(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, invoices, 1)
	assert.Equal(t, "INV_002", invoices[0].ID)
}

func TestParseInvoices_BadAmountRejectsFeed(t *testing.T) {
	input := `[{"id": "INV_001", "job_id": "JOB_001", "amount": "two hundred", "paid_date": "2025-01-25"}]`

	_, _, err := ParseInvoices(strings.NewReader(input))

	assert.ErrorContains(t, err, "bad amount")
}
