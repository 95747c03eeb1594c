package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite-backed persistence for reconciliation results
type Storage struct {
	db *sql.DB
}

var _ Repository = (*Storage)(nil)

// New creates a new storage instance at the given path and runs migrations
func New(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun inserts a new reconciliation run
func (s *Storage) SaveRun(run *ReconRun) error {
	_, err := s.db.Exec(`
		INSERT INTO recon_runs (id, started_at, status, payment_count, invoice_count, skipped_invoices)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Status, run.PaymentCount, run.InvoiceCount, run.SkippedInvoices)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// CompleteRun marks a run as completed and records its summary
func (s *Storage) CompleteRun(runID string, run *ReconRun) error {
	now := time.Now()
	res, err := s.db.Exec(`
		UPDATE recon_runs
		SET completed_at = ?, status = ?, payment_count = ?, invoice_count = ?, skipped_invoices = ?,
		    high_confidence_matches = ?, requires_review = ?, match_rate_percent = ?
		WHERE id = ?`,
		now, RunStatusCompleted, run.PaymentCount, run.InvoiceCount, run.SkippedInvoices,
		run.HighConfidenceMatches, run.RequiresReview, run.MatchRatePercent, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return checkRowAffected(res, runID)
}

// FailRun marks a run as failed with an error message
func (s *Storage) FailRun(runID, message string) error {
	now := time.Now()
	res, err := s.db.Exec(`
		UPDATE recon_runs SET completed_at = ?, status = ?, error_message = ? WHERE id = ?`,
		now, RunStatusFailed, message, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return checkRowAffected(res, runID)
}

// CancelRun marks a run cancelled before it finished matching.
func (s *Storage) CancelRun(runID string) error {
	now := time.Now()
	res, err := s.db.Exec(`
		UPDATE recon_runs SET completed_at = ?, status = ? WHERE id = ?`,
		now, RunStatusCancelled, runID)
	if err != nil {
		return fmt.Errorf("failed to mark run cancelled: %w", err)
	}
	return checkRowAffected(res, runID)
}

func checkRowAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID string) (*ReconRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, completed_at, status, payment_count, invoice_count, skipped_invoices,
		       high_confidence_matches, requires_review, match_rate_percent, error_message
		FROM recon_runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]*ReconRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, completed_at, status, payment_count, invoice_count, skipped_invoices,
		       high_confidence_matches, requires_review, match_rate_percent, error_message
		FROM recon_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*ReconRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*ReconRun, error) {
	var run ReconRun
	var completedAt sql.NullTime
	err := row.Scan(&run.ID, &run.StartedAt, &completedAt, &run.Status,
		&run.PaymentCount, &run.InvoiceCount, &run.SkippedInvoices,
		&run.HighConfidenceMatches, &run.RequiresReview, &run.MatchRatePercent, &run.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// SaveMatches inserts match records in a single transaction
func (s *Storage) SaveMatches(matches []*MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO match_records (run_id, payment_id, match_type, confidence, variance_cents,
		                           variance_percent, requires_human_review, suggested_action,
		                           invoice_ids_json, job_ids_json, rationale_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range matches {
		invoiceIDs, err := json.Marshal(m.InvoiceIDs)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal invoice IDs: %w", err)
		}
		jobIDs, err := json.Marshal(m.JobIDs)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal job IDs: %w", err)
		}
		res, err := stmt.Exec(m.RunID, m.PaymentID, m.MatchType, m.Confidence, m.VarianceCents,
			m.VariancePercent, m.RequiresHumanReview, m.SuggestedAction,
			string(invoiceIDs), string(jobIDs), m.RationaleJSON)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert match for payment %s: %w", m.PaymentID, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			m.ID = id
		}
	}

	return tx.Commit()
}

// GetMatch retrieves a match record by ID
func (s *Storage) GetMatch(id int64) (*MatchRecord, error) {
	row := s.db.QueryRow(matchSelectColumns+` FROM match_records WHERE id = ?`, id)

	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

const matchSelectColumns = `
	SELECT id, run_id, payment_id, match_type, confidence, variance_cents, variance_percent,
	       requires_human_review, suggested_action, invoice_ids_json, job_ids_json, rationale_json, created_at`

const reviewSelectColumns = `
	SELECT m.id, m.run_id, m.payment_id, m.match_type, m.confidence, m.variance_cents, m.variance_percent,
	       m.requires_human_review, m.suggested_action, m.invoice_ids_json, m.job_ids_json, m.rationale_json, m.created_at`

func scanMatch(row rowScanner) (*MatchRecord, error) {
	var m MatchRecord
	var invoiceIDs, jobIDs string
	err := row.Scan(&m.ID, &m.RunID, &m.PaymentID, &m.MatchType, &m.Confidence,
		&m.VarianceCents, &m.VariancePercent, &m.RequiresHumanReview, &m.SuggestedAction,
		&invoiceIDs, &jobIDs, &m.RationaleJSON, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(invoiceIDs), &m.InvoiceIDs); err != nil {
		return nil, fmt.Errorf("failed to decode invoice IDs for match %d: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(jobIDs), &m.JobIDs); err != nil {
		return nil, fmt.Errorf("failed to decode job IDs for match %d: %w", m.ID, err)
	}
	return &m, nil
}

// ListMatches returns matches satisfying the filters, newest first
func (s *Storage) ListMatches(filters MatchFilters) (*MatchListResult, error) {
	var conditions []string
	var args []any

	if filters.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filters.RunID)
	}
	if filters.MatchType != "" {
		conditions = append(conditions, "match_type = ?")
		args = append(args, filters.MatchType)
	}
	if filters.RequiresReview != nil {
		conditions = append(conditions, "requires_human_review = ?")
		args = append(args, *filters.RequiresReview)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM match_records"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query := matchSelectColumns + ` FROM match_records` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &MatchListResult{Matches: []*MatchRecord{}, Total: total}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, m)
	}
	return result, rows.Err()
}

// GetStats returns aggregate statistics across all runs and matches
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{MatchesByType: make(map[string]int)}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM recon_runs").Scan(&stats.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM match_records").
		Scan(&stats.TotalMatches, &stats.AverageConfidence); err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	rows, err := s.db.Query("SELECT match_type, COUNT(*) FROM match_records GROUP BY match_type")
	if err != nil {
		return nil, fmt.Errorf("failed to group matches: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var matchType string
		var count int
		if err := rows.Scan(&matchType, &count); err != nil {
			return nil, err
		}
		stats.MatchesByType[matchType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM match_records m
		WHERE m.requires_human_review = 1
		  AND NOT EXISTS (SELECT 1 FROM review_decisions d WHERE d.match_id = m.id)`).
		Scan(&stats.PendingReview)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}

	return stats, nil
}

// ListReviewQueue returns flagged matches that have no recorded decision yet
func (s *Storage) ListReviewQueue(limit, offset int) (*MatchListResult, error) {
	pending := ` FROM match_records m
		WHERE m.requires_human_review = 1
		  AND NOT EXISTS (SELECT 1 FROM review_decisions d WHERE d.match_id = m.id)`

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*)"+pending).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count review queue: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(reviewSelectColumns+pending+
		` ORDER BY m.confidence ASC, m.id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &MatchListResult{Matches: []*MatchRecord{}, Total: total}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, m)
	}
	return result, rows.Err()
}

// SaveReviewDecision records a reviewer's decision for a flagged match
func (s *Storage) SaveReviewDecision(decision *ReviewDecision) error {
	if _, err := s.GetMatch(decision.MatchID); err != nil {
		return err
	}

	res, err := s.db.Exec(`
		INSERT INTO review_decisions (match_id, decision, reviewer, notes)
		VALUES (?, ?, ?, ?)`,
		decision.MatchID, decision.Decision, decision.Reviewer, decision.Notes)
	if err != nil {
		return fmt.Errorf("failed to save review decision: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		decision.ID = id
	}
	return nil
}

// GetReviewDecisions returns all decisions recorded for a match, oldest first
func (s *Storage) GetReviewDecisions(matchID int64) ([]*ReviewDecision, error) {
	rows, err := s.db.Query(`
		SELECT id, match_id, decision, reviewer, notes, created_at
		FROM review_decisions WHERE match_id = ? ORDER BY id ASC`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*ReviewDecision
	for rows.Next() {
		var d ReviewDecision
		if err := rows.Scan(&d.ID, &d.MatchID, &d.Decision, &d.Reviewer, &d.Notes, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}
