package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldbooks/cashrecon/internal/domain/reconcile"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// RunStatus represents the current state of a reconciliation job.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Job staleness thresholds. Reconciliation runs are short; anything that
// sits without progress for minutes is assumed hung.
const (
	DefaultJobStaleThreshold = 5 * time.Minute
	DefaultJobMaxDuration    = 30 * time.Minute
)

// ReconRequest holds the inputs for a reconciliation run.
type ReconRequest struct {
	Payments        []reconcile.Payment
	Invoices        []reconcile.Invoice
	SkippedInvoices int
}

// ReconProgress holds real-time progress information.
type ReconProgress struct {
	CurrentPhase    string // "pending", "matching", "persisting", "completed", "failed"
	TotalPayments   int
	MatchedPayments int
	LastUpdate      time.Time
}

// ReconJob represents a running or completed reconciliation job.
// The job ID doubles as the persisted run ID.
type ReconJob struct {
	ID          string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    ReconProgress
	Result      *reconcile.Result
	Error       error
	cancelFunc  context.CancelFunc
}

// ReconService runs reconciliations asynchronously and persists their results.
type ReconService struct {
	engine  *reconcile.Engine
	workers int
	storage storage.Repository
	logger  *slog.Logger

	jobs      map[string]*ReconJob
	jobsMutex sync.RWMutex

	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconService creates a new reconciliation service.
func NewReconService(engineCfg reconcile.Config, workers int, store storage.Repository, logger *slog.Logger) *ReconService {
	if workers <= 0 {
		workers = 4
	}
	return &ReconService{
		engine:  reconcile.NewEngine(engineCfg),
		workers: workers,
		storage: store,
		logger:  logger,
		jobs:    make(map[string]*ReconJob),
	}
}

// StartReconciliation starts a new reconciliation job asynchronously.
// The passed context is NOT used as the parent for the background job, so
// the job survives the HTTP request that started it. Use CancelRun to stop it.
func (s *ReconService) StartReconciliation(_ context.Context, req ReconRequest) (string, error) {
	if len(req.Payments) == 0 {
		return "", fmt.Errorf("no payments to reconcile")
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithCancel(context.Background())

	job := &ReconJob{
		ID:         jobID,
		Status:     StatusPending,
		StartedAt:  time.Now(),
		cancelFunc: cancel,
		Progress: ReconProgress{
			CurrentPhase:  "pending",
			TotalPayments: len(req.Payments),
			LastUpdate:    time.Now(),
		},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job, req)

	s.logger.Info("reconciliation job started",
		"job_id", jobID,
		"payments", len(req.Payments),
		"invoices", len(req.Invoices),
	)

	return jobID, nil
}

// GetJob retrieves a job by ID.
func (s *ReconService) GetJob(jobID string) (*ReconJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return job, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *ReconService) ListActiveJobs() []*ReconJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var active []*ReconJob
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			active = append(active, job)
		}
	}
	return active
}

// CancelRun cancels a running reconciliation job.
func (s *ReconService) CancelRun(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("reconciliation job cancelled", "job_id", jobID)
	return nil
}

// runJob executes a reconciliation in a background goroutine.
func (s *ReconService) runJob(ctx context.Context, job *ReconJob, req ReconRequest) {
	s.updateJobPhase(job.ID, StatusRunning, "matching")

	run := &storage.ReconRun{
		ID:              job.ID,
		StartedAt:       job.StartedAt,
		Status:          storage.RunStatusRunning,
		PaymentCount:    len(req.Payments),
		InvoiceCount:    len(req.Invoices),
		SkippedInvoices: req.SkippedInvoices,
	}
	if err := s.storage.SaveRun(run); err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to record run: %w", err))
		return
	}

	matches, err := s.matchAll(ctx, job.ID, req.Payments, req.Invoices)
	if err != nil {
		if ctx.Err() == context.Canceled {
			// Job state was already flipped in CancelRun
			_ = s.storage.CancelRun(job.ID)
			return
		}
		s.failJob(job.ID, err)
		_ = s.storage.FailRun(job.ID, err.Error())
		return
	}

	result := &reconcile.Result{
		Matches: matches,
		Summary: reconcile.Summarize(matches),
	}

	s.updateJobPhase(job.ID, StatusRunning, "persisting")

	records := make([]*storage.MatchRecord, 0, len(matches))
	for _, match := range matches {
		records = append(records, storage.NewMatchRecord(job.ID, match))
	}
	if err := s.storage.SaveMatches(records); err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to persist matches: %w", err))
		_ = s.storage.FailRun(job.ID, err.Error())
		return
	}

	run.HighConfidenceMatches = result.Summary.HighConfidenceMatches
	run.RequiresReview = result.Summary.RequiresReview
	run.MatchRatePercent = result.Summary.MatchRatePercent
	if err := s.storage.CompleteRun(job.ID, run); err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to complete run: %w", err))
		return
	}

	s.completeJob(job.ID, result)
}

// matchAll matches every payment against the invoice pool using a bounded
// worker pool. Results land at the payment's input index, so output order
// matches input order regardless of which worker finishes first.
func (s *ReconService) matchAll(ctx context.Context, jobID string, payments []reconcile.Payment, invoices []reconcile.Invoice) ([]reconcile.PaymentMatch, error) {
	matches := make([]reconcile.PaymentMatch, len(payments))
	indexes := make(chan int)

	var wg sync.WaitGroup
	var done int
	var doneMutex sync.Mutex

	workers := s.workers
	if workers > len(payments) {
		workers = len(payments)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				matches[i] = s.engine.MatchPayment(payments[i], invoices)

				doneMutex.Lock()
				done++
				count := done
				doneMutex.Unlock()
				s.updateJobMatched(jobID, count)
			}
		}()
	}

	var cancelled bool
feed:
	for i := range payments {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	return matches, nil
}

func (s *ReconService) updateJobPhase(jobID string, status RunStatus, phase string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Status = status
		job.Progress.CurrentPhase = phase
		job.Progress.LastUpdate = time.Now()
	}
}

func (s *ReconService) updateJobMatched(jobID string, matched int) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Progress.MatchedPayments = matched
		job.Progress.LastUpdate = time.Now()
	}
}

func (s *ReconService) completeJob(jobID string, result *reconcile.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Result = result
		job.Progress.CurrentPhase = "completed"
		job.Progress.MatchedPayments = result.Summary.TotalPayments
		job.Progress.LastUpdate = now
		s.logger.Info("reconciliation job completed",
			"job_id", jobID,
			"payments", result.Summary.TotalPayments,
			"high_confidence", result.Summary.HighConfidenceMatches,
			"requires_review", result.Summary.RequiresReview,
			"match_rate", result.Summary.MatchRatePercent,
		)
	}
}

func (s *ReconService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("reconciliation job failed", "job_id", jobID, "error", err)
	}
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (s *ReconService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old reconciliation jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear stuck and marks them as failed.
// A job is stale when it has run longer than maxDuration or its progress has
// not moved within staleThreshold.
func (s *ReconService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		var reason string
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v", now.Sub(job.Progress.LastUpdate).Round(time.Second))
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.logger.Warn("marked stale job as failed", "job_id", id, "reason", reason)
		marked++
	}

	return marked
}

// StartBackgroundCleanup starts a goroutine that periodically marks stale
// jobs failed and drops old finished jobs. Call StopBackgroundCleanup to stop.
func (s *ReconService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				s.CleanupOldJobs(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine and blocks
// until it has exited.
func (s *ReconService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}
