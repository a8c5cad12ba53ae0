package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker manages background jobs and cron scheduled tasks
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	queueWG       sync.WaitGroup
	asyncWG       sync.WaitGroup
	queue         chan Job
	asyncSem      chan struct{}
	maxConcurrent int
	cron          *cron.Cron
	closed        bool
	closeMu       sync.RWMutex
	stats         WorkerStats
	statsMu       sync.RWMutex
}

// WorkerStats holds statistics about the worker. CompletedJobs counts every
// finished job; FailedJobs is the subset that returned an error or panicked.
type WorkerStats struct {
	ActiveJobs     int   `json:"active_jobs"`
	CompletedJobs  int64 `json:"completed_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
	QueueLength    int   `json:"queue_length"`
	MaxConcurrent  int   `json:"max_concurrent"`
	ScheduledTasks int   `json:"scheduled_tasks"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan Job, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
		cron:          cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	for i := 0; i < numWorkers; i++ {
		w.queueWG.Add(1)
		go w.process(i)
	}
	w.cron.Start()

	return w
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(job Job) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		logger.Warn("[Worker] Enqueue after shutdown, job dropped")
		return
	}

	select {
	case w.queue <- job:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously")
		w.run("queue-overflow", job)
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(job Job) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		logger.Warn("[Worker] EnqueueAsync after shutdown, job dropped")
		return
	}

	w.asyncWG.Add(1)
	go func() {
		defer w.asyncWG.Done()
		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()
		w.run("async", job)
	}()
}

// ScheduleCron registers a job on a cron spec (standard five field syntax or
// descriptors such as @daily). Overlapping runs of the same job are skipped.
func (w *Worker) ScheduleCron(spec, name string, job Job) error {
	_, err := w.cron.AddFunc(spec, func() {
		w.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q for %s: %w", spec, name, err)
	}
	logger.Info("[Scheduler] Job registered", "job", name, "spec", spec)
	return nil
}

// process handles jobs from the queue until it is closed
func (w *Worker) process(workerID int) {
	defer w.queueWG.Done()
	for job := range w.queue {
		w.run(fmt.Sprintf("worker-%d", workerID), job)
	}
}

func (w *Worker) run(name string, job Job) {
	w.trackJobStart()
	start := time.Now()
	failed := false

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Worker] Job panic", "job", name, "panic", r)
			failed = true
		}
		w.trackJobEnd(failed)
	}()

	if err := job(w.ctx); err != nil {
		logger.Error("[Worker] Job error", "job", name, "error", err)
		failed = true
		return
	}
	logger.Debug("[Worker] Job completed", "job", name, "duration", time.Since(start))
}

// Shutdown stops the scheduler, drains queued and async jobs, then cancels
// the worker context.
func (w *Worker) Shutdown() {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.closeMu.Unlock()

	<-w.cron.Stop().Done()
	w.queueWG.Wait()
	w.asyncWG.Wait()
	w.cancel()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	stats.ScheduledTasks = len(w.cron.Entries())
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

func (w *Worker) trackJobEnd(failed bool) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
	if failed {
		w.stats.FailedJobs++
	}
}
