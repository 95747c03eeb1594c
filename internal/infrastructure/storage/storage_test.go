package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "cashrecon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRun(id string) *ReconRun {
	return &ReconRun{
		ID:           id,
		StartedAt:    time.Now().Truncate(time.Second),
		Status:       RunStatusRunning,
		PaymentCount: 3,
		InvoiceCount: 10,
	}
}

func TestStorage_RunLifecycle(t *testing.T) {
	store := openTestStorage(t)

	run := testRun("run-001")
	require.NoError(t, store.SaveRun(run))

	retrieved, err := store.GetRun("run-001")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, retrieved.Status)
	assert.Equal(t, 3, retrieved.PaymentCount)
	assert.Nil(t, retrieved.CompletedAt)

	run.HighConfidenceMatches = 2
	run.RequiresReview = 1
	run.MatchRatePercent = 66.7
	require.NoError(t, store.CompleteRun("run-001", run))

	retrieved, err = store.GetRun("run-001")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, retrieved.Status)
	assert.Equal(t, 2, retrieved.HighConfidenceMatches)
	assert.Equal(t, 1, retrieved.RequiresReview)
	assert.InDelta(t, 66.7, retrieved.MatchRatePercent, 0.001)
	require.NotNil(t, retrieved.CompletedAt)
}

func TestStorage_FailRun(t *testing.T) {
	store := openTestStorage(t)

	require.NoError(t, store.SaveRun(testRun("run-002")))
	require.NoError(t, store.FailRun("run-002", "invoice feed unreadable"))

	retrieved, err := store.GetRun("run-002")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, retrieved.Status)
	assert.Equal(t, "invoice feed unreadable", retrieved.ErrorMessage)
}

func TestStorage_CancelRun(t *testing.T) {
	store := openTestStorage(t)

	require.NoError(t, store.SaveRun(testRun("run-003")))
	require.NoError(t, store.CancelRun("run-003"))

	retrieved, err := store.GetRun("run-003")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, retrieved.Status)
	assert.Empty(t, retrieved.ErrorMessage)
	assert.NotNil(t, retrieved.CompletedAt)
}

func TestStorage_GetRun_NotFound(t *testing.T) {
	store := openTestStorage(t)

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.CompleteRun("missing", testRun("missing")), ErrNotFound)
	assert.ErrorIs(t, store.FailRun("missing", "boom"), ErrNotFound)
	assert.ErrorIs(t, store.CancelRun("missing"), ErrNotFound)
}

func TestStorage_ListRuns_NewestFirst(t *testing.T) {
	store := openTestStorage(t)

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := testRun(id)
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveRun(run))
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestStorage_SaveAndGetMatch(t *testing.T) {
	store := openTestStorage(t)
	require.NoError(t, store.SaveRun(testRun("run-010")))

	match := reconcile.PaymentMatch{
		PaymentID:       "PAY_001",
		InvoiceIDs:      []string{"INV_001", "INV_002"},
		JobIDs:          []string{"JOB_A", "JOB_B"},
		Confidence:      0.97,
		MatchType:       reconcile.MatchBundled,
		VarianceCents:   -50,
		VariancePercent: -0.02,
		SuggestedAction: reconcile.ActionAutoMatch,
		Rationale: reconcile.Rationale{
			Reason:            "combined invoice total within tolerance",
			VarianceCents:     -50,
			EstimatedFeeCents: 55,
		},
	}
	record := NewMatchRecord("run-010", match)
	require.NoError(t, store.SaveMatches([]*MatchRecord{record}))
	require.NotZero(t, record.ID)

	retrieved, err := store.GetMatch(record.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAY_001", retrieved.PaymentID)
	assert.Equal(t, string(reconcile.MatchBundled), retrieved.MatchType)
	assert.Equal(t, []string{"INV_001", "INV_002"}, retrieved.InvoiceIDs)
	assert.Equal(t, []string{"JOB_A", "JOB_B"}, retrieved.JobIDs)
	assert.InDelta(t, 0.97, retrieved.Confidence, 0.0001)
	assert.Equal(t, int64(-50), retrieved.VarianceCents)

	rationale, err := retrieved.Rationale()
	require.NoError(t, err)
	assert.Equal(t, "combined invoice total within tolerance", rationale.Reason)
	assert.Equal(t, int64(55), rationale.EstimatedFeeCents)
}

func TestStorage_GetMatch_NotFound(t *testing.T) {
	store := openTestStorage(t)

	_, err := store.GetMatch(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedMatches(t *testing.T, store *Storage, runID string) []*MatchRecord {
	t.Helper()
	require.NoError(t, store.SaveRun(testRun(runID)))

	records := []*MatchRecord{
		NewMatchRecord(runID, reconcile.PaymentMatch{
			PaymentID: "PAY_EXACT", InvoiceIDs: []string{"INV_1"}, JobIDs: []string{"JOB_1"},
			Confidence: 0.95, MatchType: reconcile.MatchExact, SuggestedAction: reconcile.ActionAutoMatch,
		}),
		NewMatchRecord(runID, reconcile.PaymentMatch{
			PaymentID: "PAY_FUZZY", InvoiceIDs: []string{"INV_2"}, JobIDs: []string{"JOB_2"},
			Confidence: 0.72, MatchType: reconcile.MatchFuzzy, VariancePercent: 7.0,
			RequiresHumanReview: true, SuggestedAction: reconcile.ActionReviewVariance,
		}),
		NewMatchRecord(runID, reconcile.PaymentMatch{
			PaymentID: "PAY_NONE", InvoiceIDs: []string{}, JobIDs: []string{},
			Confidence: 0.25, MatchType: reconcile.MatchUnmatched, VariancePercent: 100,
			RequiresHumanReview: true, SuggestedAction: reconcile.ActionManualInvestigation,
		}),
	}
	require.NoError(t, store.SaveMatches(records))
	return records
}

func TestStorage_ListMatches_Filters(t *testing.T) {
	store := openTestStorage(t)
	seedMatches(t, store, "run-020")

	t.Run("by run", func(t *testing.T) {
		result, err := store.ListMatches(MatchFilters{RunID: "run-020"})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Len(t, result.Matches, 3)
	})

	t.Run("by match type", func(t *testing.T) {
		result, err := store.ListMatches(MatchFilters{MatchType: string(reconcile.MatchFuzzy)})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "PAY_FUZZY", result.Matches[0].PaymentID)
	})

	t.Run("by review flag", func(t *testing.T) {
		review := true
		result, err := store.ListMatches(MatchFilters{RequiresReview: &review})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Total)
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := store.ListMatches(MatchFilters{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Len(t, result.Matches, 1)
	})

	t.Run("unknown run is empty", func(t *testing.T) {
		result, err := store.ListMatches(MatchFilters{RunID: "run-nope"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Total)
		assert.Empty(t, result.Matches)
	})
}

func TestStorage_ReviewQueue(t *testing.T) {
	store := openTestStorage(t)
	records := seedMatches(t, store, "run-030")

	queue, err := store.ListReviewQueue(10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, queue.Total)
	// Lowest confidence comes first
	assert.Equal(t, "PAY_NONE", queue.Matches[0].PaymentID)
	assert.Equal(t, "PAY_FUZZY", queue.Matches[1].PaymentID)

	// A decision removes the match from the queue
	fuzzyID := records[1].ID
	decision := &ReviewDecision{
		MatchID:  fuzzyID,
		Decision: DecisionApproved,
		Reviewer: "ops@fieldbooks.test",
		Notes:    "variance is a known processor fee",
	}
	require.NoError(t, store.SaveReviewDecision(decision))
	require.NotZero(t, decision.ID)

	queue, err = store.ListReviewQueue(10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, queue.Total)
	assert.Equal(t, "PAY_NONE", queue.Matches[0].PaymentID)

	decisions, err := store.GetReviewDecisions(fuzzyID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, DecisionApproved, decisions[0].Decision)
	assert.Equal(t, "ops@fieldbooks.test", decisions[0].Reviewer)
}

func TestStorage_SaveReviewDecision_UnknownMatch(t *testing.T) {
	store := openTestStorage(t)

	err := store.SaveReviewDecision(&ReviewDecision{MatchID: 42, Decision: DecisionRejected, Reviewer: "ops"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_GetStats(t *testing.T) {
	store := openTestStorage(t)
	records := seedMatches(t, store, "run-040")

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 3, stats.TotalMatches)
	assert.Equal(t, 1, stats.MatchesByType[string(reconcile.MatchExact)])
	assert.Equal(t, 1, stats.MatchesByType[string(reconcile.MatchFuzzy)])
	assert.Equal(t, 1, stats.MatchesByType[string(reconcile.MatchUnmatched)])
	assert.InDelta(t, (0.95+0.72+0.25)/3, stats.AverageConfidence, 0.0001)
	assert.Equal(t, 2, stats.PendingReview)

	require.NoError(t, store.SaveReviewDecision(&ReviewDecision{
		MatchID: records[2].ID, Decision: DecisionReassigned, Reviewer: "ops",
	}))

	stats, err = store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingReview)
}

func TestStorage_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cashrecon.db")

	store, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(testRun("run-050")))
	require.NoError(t, store.Close())

	// Reopening runs migrations again against the same file
	store, err = New(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	run, err := store.GetRun("run-050")
	require.NoError(t, err)
	assert.Equal(t, "run-050", run.ID)
}
