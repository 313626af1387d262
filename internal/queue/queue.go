// Package queue implements the bounded-concurrency audit scheduler: a
// priority-FIFO admission queue feeding a fixed worker pool, with per-job
// deadlines, bounded retry, and moving-average statistics.
//
// Priorities order admission only. A running job is never preempted by a
// later, higher-priority arrival.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ganaudit/internal/logging"
	"ganaudit/internal/metrics"
	"ganaudit/internal/types"
)

// Worker executes one job under the job's deadline context.
type Worker func(ctx context.Context, job *Job) (*types.StructuredReview, error)

// Options tune a single enqueue.
type Options struct {
	Priority   types.Priority
	Timeout    time.Duration
	MaxRetries int
	// Payload carries caller-owned per-job data (context pack, effective
	// config) through to the worker untouched.
	Payload interface{}
}

// Job is one queued audit. Owned by the queue from enqueue until its future
// resolves; callers only hold the future.
type Job struct {
	ID         string
	Thought    types.Thought
	SessionID  string
	Priority   types.Priority
	Timeout    time.Duration
	Retries    int
	MaxRetries int
	Payload    interface{}

	CreatedAt time.Time
	StartedAt time.Time

	seq    uint64
	future *Future
	cancel context.CancelFunc
}

// Future resolves exactly once with the job's outcome.
type Future struct {
	once sync.Once
	ch   chan outcome
}

type outcome struct {
	review *types.StructuredReview
	err    error
}

func newFuture() *Future {
	return &Future{ch: make(chan outcome, 1)}
}

func (f *Future) resolve(review *types.StructuredReview, err error) {
	f.once.Do(func() {
		f.ch <- outcome{review: review, err: err}
	})
}

// Wait blocks until the job resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (*types.StructuredReview, error) {
	select {
	case out := <-f.ch:
		return out.review, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats is a point-in-time snapshot of queue health.
type Stats struct {
	Pending     int     `json:"pending"`
	Running     int     `json:"running"`
	Completed   uint64  `json:"completed"`
	Failed      uint64  `json:"failed"`
	AvgWaitMs   float64 `json:"avgWaitMs"`
	AvgExecMs   float64 `json:"avgExecMs"`
	Utilization float64 `json:"utilization"` // 0..100
}

type sample struct {
	wait time.Duration
	exec time.Duration
}

// Queue is the bounded-concurrency job scheduler.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending []*Job // sorted by (priority weight desc, seq asc)
	running map[string]*Job

	worker         Worker
	maxConcurrent  int
	maxQueueSize   int
	defaultTimeout time.Duration
	defaultRetries int

	paused    bool
	destroyed bool
	nextSeq   uint64

	completed uint64
	failed    uint64
	ring      []sample
	ringCap   int

	wg sync.WaitGroup
}

// Config bounds the queue.
type Config struct {
	MaxConcurrent  int
	MaxQueueSize   int
	DefaultTimeout time.Duration
	DefaultRetries int
	StatsWindow    int
}

// New creates a queue and starts its worker pool.
func New(cfg Config, worker Worker) *Queue {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxQueueSize < 1 {
		cfg.MaxQueueSize = 1
	}
	if cfg.StatsWindow < 1 {
		cfg.StatsWindow = 100
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}

	q := &Queue{
		running:        make(map[string]*Job),
		worker:         worker,
		maxConcurrent:  cfg.MaxConcurrent,
		maxQueueSize:   cfg.MaxQueueSize,
		defaultTimeout: cfg.DefaultTimeout,
		defaultRetries: cfg.DefaultRetries,
		ringCap:        cfg.StatsWindow,
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < q.maxConcurrent; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}
	logging.Queue("queue started: workers=%d maxQueueSize=%d", q.maxConcurrent, q.maxQueueSize)
	return q
}

// Enqueue admits a job. Fails immediately with ErrQueueFull when pending is
// at capacity, and with ErrQueueDestroyed after Destroy.
func (q *Queue) Enqueue(thought types.Thought, sessionID string, opts Options) (*Future, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return nil, types.ErrQueueDestroyed
	}
	if len(q.pending) >= q.maxQueueSize {
		return nil, fmt.Errorf("%w: %d pending", types.ErrQueueFull, len(q.pending))
	}

	if opts.Priority == "" {
		opts.Priority = types.PriorityNormal
	}
	if opts.Timeout <= 0 {
		opts.Timeout = q.defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = q.defaultRetries
	}

	q.nextSeq++
	job := &Job{
		ID:         uuid.NewString(),
		Thought:    thought,
		SessionID:  sessionID,
		Priority:   opts.Priority,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		Payload:    opts.Payload,
		CreatedAt:  time.Now(),
		seq:        q.nextSeq,
		future:     newFuture(),
	}

	q.insertLocked(job)
	metrics.QueueDepth.Set(float64(len(q.pending)))
	logging.Audit(logging.AuditJobEnqueued, sessionID, job.ID, map[string]interface{}{
		"priority": string(job.Priority),
		"pending":  len(q.pending),
	})
	q.cond.Signal()
	return job.future, nil
}

// insertLocked places the job by (priority weight desc, seq asc).
func (q *Queue) insertLocked(job *Job) {
	w := job.Priority.Weight()
	idx := len(q.pending)
	for i, p := range q.pending {
		pw := p.Priority.Weight()
		if w > pw || (w == pw && job.seq < p.seq) {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = job
}

// runWorker is one pool goroutine: wait for a schedulable job, run it to a
// terminal state, repeat.
func (q *Queue) runWorker(n int) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for !q.destroyed && (q.paused || len(q.pending) == 0) {
			q.cond.Wait()
		}
		if q.destroyed {
			q.mu.Unlock()
			return
		}

		job := q.pending[0]
		q.pending = q.pending[1:]
		job.StartedAt = time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
		job.cancel = cancel
		q.running[job.ID] = job
		metrics.QueueDepth.Set(float64(len(q.pending)))
		metrics.QueueRunning.Set(float64(len(q.running)))
		q.mu.Unlock()

		logging.QueueDebug("worker %d picked job %s (priority=%s retries=%d)", n, job.ID, job.Priority, job.Retries)
		logging.Audit(logging.AuditJobStarted, job.SessionID, job.ID, nil)

		review, err := q.worker(ctx, job)
		cancel()

		if err != nil && ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w after %v", types.ErrJobTimeout, job.Timeout)
		}

		q.finishJob(job, review, err)
	}
}

// finishJob records the outcome: success resolves, retryable failure
// requeues, terminal failure resolves with the error.
func (q *Queue) finishJob(job *Job, review *types.StructuredReview, err error) {
	q.mu.Lock()
	delete(q.running, job.ID)
	metrics.QueueRunning.Set(float64(len(q.running)))

	if q.destroyed {
		q.mu.Unlock()
		job.future.resolve(nil, types.ErrQueueDestroyed)
		return
	}

	if err != nil && job.Retries < job.MaxRetries {
		job.Retries++
		wait := job.StartedAt.Sub(job.CreatedAt)
		job.StartedAt = time.Time{}
		q.insertLocked(job)
		metrics.QueueDepth.Set(float64(len(q.pending)))
		q.cond.Signal()
		q.mu.Unlock()

		logging.Queue("job %s retry %d/%d after error: %v (waited %v)", job.ID, job.Retries, job.MaxRetries, err, wait)
		logging.Audit(logging.AuditJobRetried, job.SessionID, job.ID, map[string]interface{}{
			"retries": job.Retries,
			"error":   err.Error(),
		})
		metrics.JobsRetried.Inc()
		return
	}

	wait := job.StartedAt.Sub(job.CreatedAt)
	exec := time.Since(job.StartedAt)
	q.recordLocked(sample{wait: wait, exec: exec}, err == nil)
	q.mu.Unlock()

	if err != nil {
		logging.Audit(logging.AuditJobFailed, job.SessionID, job.ID, map[string]interface{}{"error": err.Error()})
		metrics.JobsFailed.Inc()
	} else {
		logging.Audit(logging.AuditJobCompleted, job.SessionID, job.ID, map[string]interface{}{
			"waitMs": wait.Milliseconds(),
			"execMs": exec.Milliseconds(),
		})
		metrics.JobsCompleted.Inc()
		metrics.JobWaitSeconds.Observe(wait.Seconds())
		metrics.JobExecSeconds.Observe(exec.Seconds())
	}
	job.future.resolve(review, err)
}

func (q *Queue) recordLocked(s sample, ok bool) {
	if ok {
		q.completed++
	} else {
		q.failed++
	}
	q.ring = append(q.ring, s)
	if len(q.ring) > q.ringCap {
		q.ring = q.ring[len(q.ring)-q.ringCap:]
	}
}

// Stats returns a snapshot of queue health. Averages cover the ring of the
// most recent terminal jobs.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{
		Pending:   len(q.pending),
		Running:   len(q.running),
		Completed: q.completed,
		Failed:    q.failed,
	}
	if len(q.ring) > 0 {
		var wait, exec time.Duration
		for _, s := range q.ring {
			wait += s.wait
			exec += s.exec
		}
		st.AvgWaitMs = float64(wait.Milliseconds()) / float64(len(q.ring))
		st.AvgExecMs = float64(exec.Milliseconds()) / float64(len(q.ring))
	}
	st.Utilization = 100 * float64(len(q.running)) / float64(q.maxConcurrent)
	return st
}

// Pause stops scheduling new jobs; running jobs continue.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	logging.Queue("queue paused")
}

// Resume restarts scheduling.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
	logging.Queue("queue resumed")
}

// Clear drops all pending jobs, resolving their futures with
// ErrQueueDestroyed. Running jobs are unaffected.
func (q *Queue) Clear() int {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	metrics.QueueDepth.Set(0)
	q.mu.Unlock()

	for _, job := range dropped {
		job.future.resolve(nil, types.ErrQueueDestroyed)
	}
	if len(dropped) > 0 {
		logging.Queue("queue cleared, %d pending jobs dropped", len(dropped))
	}
	return len(dropped)
}

// Destroy cancels all pending and running jobs and stops the worker pool.
// Every unresolved future completes with ErrQueueDestroyed.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true
	dropped := q.pending
	q.pending = nil
	for _, job := range q.running {
		if job.cancel != nil {
			job.cancel()
		}
	}
	q.mu.Unlock()

	q.cond.Broadcast()
	for _, job := range dropped {
		job.future.resolve(nil, types.ErrQueueDestroyed)
	}
	q.wg.Wait()
	logging.Queue("queue destroyed, %d pending jobs cancelled", len(dropped))
}
