package storage

import (
	"fmt"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	runs        map[string]*ReconRun
	runOrder    []string
	matches     map[int64]*MatchRecord
	matchOrder  []int64
	decisions   map[int64][]*ReviewDecision
	nextMatchID int64
	nextDecID   int64

	// Hooks for test assertions
	SaveRunCalled      bool
	CompleteRunCalled  bool
	FailRunCalled      bool
	CancelRunCalled    bool
	SaveMatchesCalled  bool
	SaveDecisionCalled bool
	LastSavedRun       *ReconRun
	LastSavedMatches   []*MatchRecord
	LastSavedDecision  *ReviewDecision

	// Error injection for testing error paths
	SaveRunErr      error
	CompleteRunErr  error
	FailRunErr      error
	CancelRunErr    error
	GetRunErr       error
	ListRunsErr     error
	SaveMatchesErr  error
	GetMatchErr     error
	ListMatchesErr  error
	GetStatsErr     error
	ReviewQueueErr  error
	SaveDecisionErr error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:        make(map[string]*ReconRun),
		matches:     make(map[int64]*MatchRecord),
		decisions:   make(map[int64][]*ReviewDecision),
		nextMatchID: 1,
		nextDecID:   1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRun stores a run in the in-memory map
func (m *MockRepository) SaveRun(run *ReconRun) error {
	m.SaveRunCalled = true
	m.LastSavedRun = run
	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	copied := *run
	m.runs[run.ID] = &copied
	m.runOrder = append(m.runOrder, run.ID)
	return nil
}

// CompleteRun marks a stored run as completed
func (m *MockRepository) CompleteRun(runID string, run *ReconRun) error {
	m.CompleteRunCalled = true
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	stored, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now()
	stored.CompletedAt = &now
	stored.Status = RunStatusCompleted
	stored.PaymentCount = run.PaymentCount
	stored.InvoiceCount = run.InvoiceCount
	stored.SkippedInvoices = run.SkippedInvoices
	stored.HighConfidenceMatches = run.HighConfidenceMatches
	stored.RequiresReview = run.RequiresReview
	stored.MatchRatePercent = run.MatchRatePercent
	return nil
}

// FailRun marks a stored run as failed
func (m *MockRepository) FailRun(runID, message string) error {
	m.FailRunCalled = true
	if m.FailRunErr != nil {
		return m.FailRunErr
	}
	stored, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now()
	stored.CompletedAt = &now
	stored.Status = RunStatusFailed
	stored.ErrorMessage = message
	return nil
}

// CancelRun marks a run cancelled in the in-memory map
func (m *MockRepository) CancelRun(runID string) error {
	m.CancelRunCalled = true
	if m.CancelRunErr != nil {
		return m.CancelRunErr
	}
	stored, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now()
	stored.CompletedAt = &now
	stored.Status = RunStatusCancelled
	return nil
}

// GetRun retrieves a run from the in-memory map
func (m *MockRepository) GetRun(runID string) (*ReconRun, error) {
	if m.GetRunErr != nil {
		return nil, m.GetRunErr
	}
	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns stored runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]*ReconRun, error) {
	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}
	if limit <= 0 {
		limit = 50
	}
	var runs []*ReconRun
	for i := len(m.runOrder) - 1; i >= 0 && len(runs) < limit; i-- {
		copied := *m.runs[m.runOrder[i]]
		runs = append(runs, &copied)
	}
	return runs, nil
}

// SaveMatches stores match records and assigns IDs
func (m *MockRepository) SaveMatches(matches []*MatchRecord) error {
	m.SaveMatchesCalled = true
	m.LastSavedMatches = matches
	if m.SaveMatchesErr != nil {
		return m.SaveMatchesErr
	}
	for _, match := range matches {
		match.ID = m.nextMatchID
		m.nextMatchID++
		copied := *match
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = time.Now()
		}
		m.matches[copied.ID] = &copied
		m.matchOrder = append(m.matchOrder, copied.ID)
	}
	return nil
}

// GetMatch retrieves a match record by ID
func (m *MockRepository) GetMatch(id int64) (*MatchRecord, error) {
	if m.GetMatchErr != nil {
		return nil, m.GetMatchErr
	}
	match, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	copied := *match
	return &copied, nil
}

// ListMatches returns matches satisfying the filters, newest first
func (m *MockRepository) ListMatches(filters MatchFilters) (*MatchListResult, error) {
	if m.ListMatchesErr != nil {
		return nil, m.ListMatchesErr
	}

	var matching []*MatchRecord
	for i := len(m.matchOrder) - 1; i >= 0; i-- {
		match := m.matches[m.matchOrder[i]]
		if filters.RunID != "" && match.RunID != filters.RunID {
			continue
		}
		if filters.MatchType != "" && match.MatchType != filters.MatchType {
			continue
		}
		if filters.RequiresReview != nil && match.RequiresHumanReview != *filters.RequiresReview {
			continue
		}
		copied := *match
		matching = append(matching, &copied)
	}

	return paginate(matching, filters.Limit, filters.Offset), nil
}

func paginate(matching []*MatchRecord, limit, offset int) *MatchListResult {
	if limit <= 0 {
		limit = 100
	}
	total := len(matching)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &MatchListResult{Matches: matching[start:end], Total: total}
}

// GetStats returns aggregate statistics over stored data
func (m *MockRepository) GetStats() (*Stats, error) {
	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}
	stats := &Stats{
		TotalRuns:     len(m.runs),
		MatchesByType: make(map[string]int),
	}
	var confidenceSum float64
	for _, match := range m.matches {
		stats.TotalMatches++
		stats.MatchesByType[match.MatchType]++
		confidenceSum += match.Confidence
		if match.RequiresHumanReview && len(m.decisions[match.ID]) == 0 {
			stats.PendingReview++
		}
	}
	if stats.TotalMatches > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.TotalMatches)
	}
	return stats, nil
}

// ListReviewQueue returns flagged matches with no recorded decision
func (m *MockRepository) ListReviewQueue(limit, offset int) (*MatchListResult, error) {
	if m.ReviewQueueErr != nil {
		return nil, m.ReviewQueueErr
	}
	var matching []*MatchRecord
	for _, id := range m.matchOrder {
		match := m.matches[id]
		if !match.RequiresHumanReview || len(m.decisions[id]) > 0 {
			continue
		}
		copied := *match
		matching = append(matching, &copied)
	}
	return paginate(matching, limit, offset), nil
}

// SaveReviewDecision records a decision for a flagged match
func (m *MockRepository) SaveReviewDecision(decision *ReviewDecision) error {
	m.SaveDecisionCalled = true
	m.LastSavedDecision = decision
	if m.SaveDecisionErr != nil {
		return m.SaveDecisionErr
	}
	if _, ok := m.matches[decision.MatchID]; !ok {
		return fmt.Errorf("match %d: %w", decision.MatchID, ErrNotFound)
	}
	decision.ID = m.nextDecID
	m.nextDecID++
	copied := *decision
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	m.decisions[decision.MatchID] = append(m.decisions[decision.MatchID], &copied)
	return nil
}

// GetReviewDecisions returns decisions recorded for a match, oldest first
func (m *MockRepository) GetReviewDecisions(matchID int64) ([]*ReviewDecision, error) {
	decisions := m.decisions[matchID]
	result := make([]*ReviewDecision, 0, len(decisions))
	for _, d := range decisions {
		copied := *d
		result = append(result, &copied)
	}
	return result, nil
}

// AddMatch adds a match record directly (for test setup)
func (m *MockRepository) AddMatch(match *MatchRecord) {
	if match.ID == 0 {
		match.ID = m.nextMatchID
		m.nextMatchID++
	} else if match.ID >= m.nextMatchID {
		m.nextMatchID = match.ID + 1
	}
	m.matches[match.ID] = match
	m.matchOrder = append(m.matchOrder, match.ID)
}

// Reset clears all data and flags (for reuse between tests)
func (m *MockRepository) Reset() {
	m.runs = make(map[string]*ReconRun)
	m.runOrder = nil
	m.matches = make(map[int64]*MatchRecord)
	m.matchOrder = nil
	m.decisions = make(map[int64][]*ReviewDecision)
	m.nextMatchID = 1
	m.nextDecID = 1
	m.SaveRunCalled = false
	m.CompleteRunCalled = false
	m.FailRunCalled = false
	m.CancelRunCalled = false
	m.SaveMatchesCalled = false
	m.SaveDecisionCalled = false
	m.LastSavedRun = nil
	m.LastSavedMatches = nil
	m.LastSavedDecision = nil
	m.SaveRunErr = nil
	m.CompleteRunErr = nil
	m.FailRunErr = nil
	m.CancelRunErr = nil
	m.GetRunErr = nil
	m.ListRunsErr = nil
	m.SaveMatchesErr = nil
	m.GetMatchErr = nil
	m.ListMatchesErr = nil
	m.GetStatsErr = nil
	m.ReviewQueueErr = nil
	m.SaveDecisionErr = nil
}
