package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Supply Sync Job Types
// ---------------------------------------------------------------------------

// JobStatus represents the status of a supply sync job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// SupplySyncJob is one queued sync run. A nil SupplierID syncs every active supplier.
type SupplySyncJob struct {
	ID          uuid.UUID
	Kind        supplysync.Kind
	SupplierID  *uuid.UUID
	Trigger     string
	Status      JobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	// Sync results
	Updated         int
	Failed          int
	Skipped         int
	FailedSuppliers int
}

// NewSupplySyncJob creates a pending job
func NewSupplySyncJob(kind supplysync.Kind, supplierID *uuid.UUID, trigger string, maxRetries int) *SupplySyncJob {
	return &SupplySyncJob{
		ID:          uuid.New(),
		Kind:        kind,
		SupplierID:  supplierID,
		Trigger:     trigger,
		Status:      JobStatusPending,
		SubmittedAt: time.Now(),
		MaxRetries:  maxRetries,
	}
}

// Start marks the job as running
func (j *SupplySyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the counters and derives the final status.
// Offer-level and supplier-level failures both count against success.
func (j *SupplySyncJob) Complete(updated, failed, skipped, failedSuppliers int) {
	now := time.Now()
	j.Updated = updated
	j.Failed = failed
	j.Skipped = skipped
	j.FailedSuppliers = failedSuppliers
	j.CompletedAt = &now

	switch {
	case failed == 0 && failedSuppliers == 0:
		j.Status = JobStatusSuccess
	case updated > 0:
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusFailed
	}
}

// Fail marks the job as failed
func (j *SupplySyncJob) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *SupplySyncJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.Error != "" && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry with exponential backoff and
// returns the delay until it is due
func (j *SupplySyncJob) ScheduleRetry(baseDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = JobStatusPending
	// baseDelay * 2^(retryCount-1)
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
	return delay
}

// ---------------------------------------------------------------------------
// SupplySyncRunner Interface
// ---------------------------------------------------------------------------

// SupplySyncRunner runs sync operations; implemented by supplysync.Service
type SupplySyncRunner interface {
	Sync(ctx context.Context, kind supplysync.Kind, supplierID uuid.UUID) (*supplysync.SyncResult, error)
	SyncAll(ctx context.Context, kind supplysync.Kind) (*supplysync.SyncAllResult, error)
}

// ---------------------------------------------------------------------------
// SupplySyncSchedulerConfig
// ---------------------------------------------------------------------------

// SupplySyncSchedulerConfig holds configuration for the supply sync scheduler
type SupplySyncSchedulerConfig struct {
	// MaxConcurrentJobs is the number of workers
	MaxConcurrentJobs int
	// QueueSize is the capacity of the job queue
	QueueSize int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// RetryAttempts is the number of retries for failed jobs
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// HistorySize is how many finished jobs are kept for inspection
	HistorySize int
}

// DefaultSupplySyncSchedulerConfig returns default configuration
func DefaultSupplySyncSchedulerConfig() SupplySyncSchedulerConfig {
	return SupplySyncSchedulerConfig{
		MaxConcurrentJobs: 2,
		QueueSize:         100,
		JobTimeout:        15 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
		HistorySize:       100,
	}
}

// Validate validates the configuration
func (c *SupplySyncSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 || c.QueueSize <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 || (c.RetryAttempts > 0 && c.RetryDelay <= 0) {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SupplySyncScheduler
// ---------------------------------------------------------------------------

// SupplySyncScheduler runs sync jobs on a bounded worker pool
type SupplySyncScheduler struct {
	config SupplySyncSchedulerConfig
	runner SupplySyncRunner
	logger *zap.Logger

	jobs      chan *SupplySyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.RWMutex
	history   []SupplySyncJob
}

// NewSupplySyncScheduler creates a new supply sync scheduler
func NewSupplySyncScheduler(config SupplySyncSchedulerConfig, runner SupplySyncRunner, logger *zap.Logger) (*SupplySyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SupplySyncScheduler{
		config:  config,
		runner:  runner,
		logger:  logger,
		jobs:    make(chan *SupplySyncJob, config.QueueSize),
		history: make([]SupplySyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (s *SupplySyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Supply sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler. Queued jobs that have not started are dropped.
func (s *SupplySyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Supply sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Supply sync scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob enqueues a job without blocking
func (s *SupplySyncScheduler) SubmitJob(job *SupplySyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Supply sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("trigger", job.Trigger),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleSync queues a sync of one supplier, or of all active suppliers when
// supplierID is nil. It returns the job ID.
func (s *SupplySyncScheduler) ScheduleSync(kind supplysync.Kind, supplierID *uuid.UUID, trigger string) (uuid.UUID, error) {
	if !kind.IsValid() {
		return uuid.Nil, supplysync.ErrUnknownKind
	}
	job := NewSupplySyncJob(kind, supplierID, trigger, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// worker processes jobs from the queue
func (s *SupplySyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *SupplySyncScheduler) processJob(ctx context.Context, job *SupplySyncJob, workerID int) {
	job.Start()
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("trigger", job.Trigger),
	}
	if job.SupplierID != nil {
		fields = append(fields, zap.String("supplier_id", job.SupplierID.String()))
	}
	s.logger.Info("Processing supply sync job", fields...)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	var err error
	telemetry.WithProfilingLabels(jobCtx,
		telemetry.SyncJobLabels(string(job.Kind), job.Trigger, job.SupplierID == nil),
		func(ctx context.Context) { err = s.execute(ctx, job) },
	)
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Supply sync job failed", append(fields, zap.Error(err))...)

		s.addToHistory(job)
		if job.ShouldRetry() && ctx.Err() == nil {
			delay := job.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Supply sync job scheduled for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Duration("delay", delay),
			)
			time.AfterFunc(delay, func() { s.requeue(job) })
		}
		return
	}

	s.logger.Info("Supply sync job completed", append(fields,
		zap.String("status", string(job.Status)),
		zap.Int("updated", job.Updated),
		zap.Int("failed", job.Failed),
		zap.Int("skipped", job.Skipped),
		zap.Int("failed_suppliers", job.FailedSuppliers),
	)...)
	s.addToHistory(job)
}

func (s *SupplySyncScheduler) execute(ctx context.Context, job *SupplySyncJob) error {
	if job.SupplierID != nil {
		res, err := s.runner.Sync(ctx, job.Kind, *job.SupplierID)
		if err != nil {
			return err
		}
		job.Complete(res.Updated, res.Errors, res.Skipped, 0)
		return nil
	}

	res, err := s.runner.SyncAll(ctx, job.Kind)
	if err != nil {
		return err
	}
	var updated, failed, skipped int
	for _, r := range res.Results {
		updated += r.Updated
		failed += r.Errors
		skipped += r.Skipped
	}
	job.Complete(updated, failed, skipped, res.FailedSuppliers)
	return nil
}

// requeue puts a retried job back on the queue unless the scheduler stopped
func (s *SupplySyncScheduler) requeue(job *SupplySyncJob) {
	if err := s.SubmitJob(job); err != nil {
		s.logger.Warn("Failed to re-queue supply sync job for retry",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// addToHistory records a snapshot of a finished attempt, newest first
func (s *SupplySyncScheduler) addToHistory(job *SupplySyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]SupplySyncJob{*job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// GetJobHistory returns recent job attempts, newest first
func (s *SupplySyncScheduler) GetJobHistory(limit int) []SupplySyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]SupplySyncJob, limit)
	copy(result, s.history[:limit])
	return result
}

// GetJob returns the latest recorded attempt of a job
func (s *SupplySyncScheduler) GetJob(id uuid.UUID) (SupplySyncJob, error) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	for _, job := range s.history {
		if job.ID == id {
			return job, nil
		}
	}
	return SupplySyncJob{}, ErrJobNotFound
}
