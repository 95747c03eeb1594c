package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInvoice(id, jobID string, amount string, paidDaysAgo int) reconcile.Invoice {
	paid := time.Now().AddDate(0, 0, -paidDaysAgo)
	return reconcile.Invoice{
		ID:       id,
		JobID:    jobID,
		Amount:   decimal.RequireFromString(amount),
		PaidDate: &paid,
	}
}

func testRequest() ReconRequest {
	return ReconRequest{
		Payments: []reconcile.Payment{
			{ID: "PAY_1", AmountCents: 250000, FeeCents: 7525, CreatedAt: time.Now()},
			{ID: "PAY_2", AmountCents: 97000, FeeCents: 3000, CreatedAt: time.Now()},
			{ID: "PAY_3", AmountCents: 1234500, CreatedAt: time.Now()},
		},
		Invoices: []reconcile.Invoice{
			testInvoice("INV_1", "JOB_1", "2500.00", 2),
			testInvoice("INV_2", "JOB_2", "1000.00", 5),
		},
		SkippedInvoices: 1,
	}
}

func waitForJob(t *testing.T, svc *ReconService, jobID string, want RunStatus) *ReconJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := svc.GetJob(jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job never reached status %s", want)

	job, err := svc.GetJob(jobID)
	require.NoError(t, err)
	return job
}

func TestReconService_RunCompletesAndPersists(t *testing.T) {
	mock := storage.NewMockRepository()
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForJob(t, svc, jobID, StatusCompleted)
	require.NotNil(t, job.Result)
	require.Len(t, job.Result.Matches, 3)

	// Output order follows input order regardless of worker scheduling
	assert.Equal(t, "PAY_1", job.Result.Matches[0].PaymentID)
	assert.Equal(t, "PAY_2", job.Result.Matches[1].PaymentID)
	assert.Equal(t, "PAY_3", job.Result.Matches[2].PaymentID)

	assert.Equal(t, reconcile.MatchExact, job.Result.Matches[0].MatchType)
	assert.Equal(t, reconcile.MatchFuzzy, job.Result.Matches[1].MatchType)
	assert.Equal(t, reconcile.MatchUnmatched, job.Result.Matches[2].MatchType)

	// The run and its matches were persisted under the job ID
	assert.True(t, mock.SaveRunCalled)
	assert.True(t, mock.SaveMatchesCalled)
	run, err := mock.GetRun(jobID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.PaymentCount)
	assert.Equal(t, 2, run.InvoiceCount)
	assert.Equal(t, 1, run.SkippedInvoices)

	stored, err := mock.ListMatches(storage.MatchFilters{RunID: jobID})
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Total)
}

func TestReconService_RejectsEmptyPayments(t *testing.T) {
	svc := NewReconService(reconcile.DefaultConfig(), 2, storage.NewMockRepository(), testLogger())

	_, err := svc.StartReconciliation(context.Background(), ReconRequest{})
	assert.Error(t, err)
}

func TestReconService_StorageFailureFailsJob(t *testing.T) {
	mock := storage.NewMockRepository()
	mock.SaveRunErr = assert.AnError
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)

	job := waitForJob(t, svc, jobID, StatusFailed)
	require.Error(t, job.Error)
	assert.Equal(t, "failed", job.Progress.CurrentPhase)
}

func TestReconService_GetJob_Unknown(t *testing.T) {
	svc := NewReconService(reconcile.DefaultConfig(), 2, storage.NewMockRepository(), testLogger())

	_, err := svc.GetJob("nope")
	assert.Error(t, err)
}

func TestReconService_CancelFinishedJobFails(t *testing.T) {
	mock := storage.NewMockRepository()
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)
	waitForJob(t, svc, jobID, StatusCompleted)

	assert.Error(t, svc.CancelRun(jobID))
}

func TestReconService_CleanupOldJobs(t *testing.T) {
	mock := storage.NewMockRepository()
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)
	waitForJob(t, svc, jobID, StatusCompleted)

	// Too young to clean up
	assert.Equal(t, 0, svc.CleanupOldJobs(time.Hour))
	// Old enough
	assert.Equal(t, 1, svc.CleanupOldJobs(0))

	_, err = svc.GetJob(jobID)
	assert.Error(t, err)
}

func TestReconService_MarkStaleJobs(t *testing.T) {
	mock := storage.NewMockRepository()
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)
	waitForJob(t, svc, jobID, StatusCompleted)

	// Finished jobs are never stale
	assert.Equal(t, 0, svc.MarkStaleJobsAsFailed(0, 0))
}

func TestReconService_ListActiveJobs_EmptyAfterCompletion(t *testing.T) {
	mock := storage.NewMockRepository()
	svc := NewReconService(reconcile.DefaultConfig(), 2, mock, testLogger())

	jobID, err := svc.StartReconciliation(context.Background(), testRequest())
	require.NoError(t, err)
	waitForJob(t, svc, jobID, StatusCompleted)

	assert.Empty(t, svc.ListActiveJobs())
}
