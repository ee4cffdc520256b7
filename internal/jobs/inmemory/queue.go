package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/billwatch/internal/jobs"
	"github.com/google/uuid"
)

// Options configures a Queue.
type Options struct {
	// BufferSize is how many jobs can wait before PublishAnalyze blocks.
	BufferSize int
	// Workers is the number of concurrent workers. Defaults to 1.
	Workers int
	// MaxRetries applies to jobs published without their own limit.
	MaxRetries int
	// RetryBackoff is multiplied by the retry count before re-enqueueing.
	// Defaults to one second.
	RetryBackoff time.Duration
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// It is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.AnalyzeJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	opts      Options
	closed    bool
}

// NewQueue creates a new in-memory job queue.
func NewQueue(opts Options, store jobs.JobStore) *Queue {
	if opts.BufferSize < 0 {
		opts.BufferSize = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Queue{
		jobChan:   make(chan *jobs.AnalyzeJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		opts:      opts,
	}
}

// PublishAnalyze implements the Publisher interface. It fills in the job ID,
// status and timestamps on job and enqueues a copy of it.
func (q *Queue) PublishAnalyze(ctx context.Context, job *jobs.AnalyzeJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("PublishAnalyze: queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.opts.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishAnalyze: save job: %w", err)
		}
	}

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("PublishAnalyze: queue is closed")
	}
}

// Start implements the Consumer interface. It starts the configured number
// of workers, each calling handler for one job at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.AnalyzeJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying

			retry := *job
			backoff := time.Duration(retry.RetryCount) * q.opts.RetryBackoff
			time.AfterFunc(backoff, func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				_ = q.PublishAnalyze(ctx, &retry)
			})
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
