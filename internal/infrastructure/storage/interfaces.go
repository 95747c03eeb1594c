package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	RunRepository
	MatchRepository
	ReviewRepository
	Close() error
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// SaveRun inserts a new run in the running state
	SaveRun(run *ReconRun) error

	// CompleteRun marks a run completed and records its summary numbers
	CompleteRun(runID string, run *ReconRun) error

	// FailRun marks a run failed with an error message
	FailRun(runID string, message string) error

	// CancelRun marks a run cancelled before it finished
	CancelRun(runID string) error

	// GetRun retrieves a run by ID
	GetRun(runID string) (*ReconRun, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]*ReconRun, error)
}

// MatchRepository handles persisted match records
type MatchRepository interface {
	// SaveMatches persists all match records for a run in one transaction
	SaveMatches(records []*MatchRecord) error

	// GetMatch retrieves a match record by ID
	GetMatch(id int64) (*MatchRecord, error)

	// ListMatches returns match records for the given filters with pagination
	ListMatches(filters MatchFilters) (*MatchListResult, error)

	// GetStats returns aggregate statistics across all runs
	GetStats() (*Stats, error)
}

// ReviewRepository handles the human-in-the-loop queue
type ReviewRepository interface {
	// ListReviewQueue returns match records still awaiting a decision
	ListReviewQueue(limit, offset int) (*MatchListResult, error)

	// SaveReviewDecision records a bookkeeper's decision for a match
	SaveReviewDecision(decision *ReviewDecision) error

	// GetReviewDecisions returns all decisions recorded for a match
	GetReviewDecisions(matchID int64) ([]*ReviewDecision, error)
}
