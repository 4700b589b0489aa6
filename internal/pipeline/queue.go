package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueStopped is returned by Submit after Stop.
var ErrQueueStopped = errors.New("job queue is stopped")

// QueueConfig sizes the job queue.
type QueueConfig struct {
	MaxQueueSize    int
	JobTTL          time.Duration
	CleanupInterval time.Duration
}

// Queue runs submitted jobs on a single worker goroutine. The checkers
// behind the worker are shared, so jobs never run concurrently.
type Queue struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	log    *slog.Logger
	cfg    QueueConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and the close of queue against Submit.
	mu      sync.Mutex
	stopped bool
}

func NewQueue(cfg QueueConfig, worker *Worker, log *slog.Logger) *Queue {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Queue{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		worker: worker,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches the worker and the job store cleanup.
func (q *Queue) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-q.queue:
				if !ok {
					return
				}
				q.worker.Process(workerCtx, job)
			}
		}
	}()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(q.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				q.jobs.Cleanup()
			}
		}
	}()
}

// Stop interrupts the running job and waits for the goroutines to exit.
// Jobs still queued are marked interrupted. Later calls do nothing.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	if q.cancel != nil {
		q.cancel()
	}
	close(q.queue)
	q.mu.Unlock()

	q.wg.Wait()
	for job := range q.queue {
		job.SetStatus(StatusInterrupted, "shutdown")
	}
}

// Submit queues a job for analysis. It fails once Stop has been called.
func (q *Queue) Submit(job *Job) error {
	q.jobs.Put(job)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrQueueStopped
	}
	select {
	case q.queue <- job:
		q.log.Info("job queued", "job_id", job.ID, "filename", job.Filename, "depth", len(q.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", q.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (q *Queue) GetJob(id string) *Job {
	return q.jobs.Get(id)
}

// QueueDepth returns the number of jobs waiting to run.
func (q *Queue) QueueDepth() int {
	return len(q.queue)
}
