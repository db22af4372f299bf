// Package queue runs jobs detached from the request path on a bounded
// worker pool. Each job gets its own timeout handle.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
)

// Status represents the current status of a task.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
)

// Task is a single queued job.
type Task struct {
	ID        string     `json:"id"`
	Job       job.Job    `json:"-"`
	Status    Status     `json:"status"`
	Worker    string     `json:"worker,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`

	cancel context.CancelFunc
}

// TaskInfo is a read-only view of an active task.
type TaskInfo struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Task       string     `json:"task"`
	Round      int        `json:"round"`
	Repository string     `json:"repository"`
	Status     Status     `json:"status"`
	Worker     string     `json:"worker,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// Handler executes one job. It must return when ctx is done.
type Handler interface {
	Handle(ctx context.Context, t *Task)
}

// Aborter is implemented by handlers that can settle a task that will
// never run.
type Aborter interface {
	Abort(ctx context.Context, t *Task, cause error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t *Task)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, t *Task) { f(ctx, t) }

// Queue manages the pool of job workers.
type Queue struct {
	tasks      chan *Task
	workers    int
	maxSize    int
	jobTimeout time.Duration
	handler    Handler
	recorder   metrics.Recorder
	logger     *slog.Logger

	mu      sync.RWMutex
	active  map[string]*Task
	queued  map[string]*Task
	stopped bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option customizes a Queue.
type Option func(*Queue)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(q *Queue) {
		if r != nil {
			q.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(q *Queue) { q.logger = l } }

// New creates a queue with the given capacity, worker count and per-job
// timeout (zero disables the timeout).
func New(maxSize, workers int, jobTimeout time.Duration, handler Handler, opts ...Option) *Queue {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if handler == nil {
		panic("queue.New: handler is required")
	}
	q := &Queue{
		tasks:      make(chan *Task, maxSize),
		workers:    workers,
		maxSize:    maxSize,
		jobTimeout: jobTimeout,
		handler:    handler,
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		active:     make(map[string]*Task),
		queued:     make(map[string]*Task),
		stopChan:   make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Start begins processing tasks with the configured number of workers.
// Job contexts do not inherit ctx cancellation; Stop cancels them.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("Starting job queue", slog.Int("workers", q.workers), slog.Int("max_size", q.maxSize))
	base := context.WithoutCancel(ctx)
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, base, fmt.Sprintf("worker-%d", i))
	}
}

// Stop stops accepting tasks, settles queued ones and waits for running
// ones. Queued tasks go to the handler's Abort when it implements Aborter.
// When ctx expires first, running tasks are canceled and Stop waits for
// them to unwind.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopChan)
	q.mu.Unlock()

	if n := q.drain(context.WithoutCancel(ctx)); n > 0 {
		q.logger.Warn("Queued jobs settled without running", slog.Int("count", n))
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	q.mu.Lock()
	for _, t := range q.active {
		if t.cancel != nil {
			t.cancel()
		}
	}
	q.mu.Unlock()
	<-done
}

// Length returns the number of tasks waiting for a worker.
func (q *Queue) Length() int {
	return len(q.tasks)
}

// Enqueue adds a task. A full or stopped queue fails with a queue error.
func (q *Queue) Enqueue(t *Task) error {
	if t == nil || t.ID == "" {
		return errors.QueueError("task ID is required").Build()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return errors.QueueError("job queue is stopped").Build()
	}
	t.Status = StatusQueued
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	select {
	case q.tasks <- t:
		q.queued[t.ID] = t
		q.recorder.SetQueueDepth(len(q.tasks))
		return nil
	default:
		return errors.QueueError("job queue is full").
			WithContext("max_size", q.maxSize).
			Build()
	}
}

// Active returns queued and running tasks ordered by creation time.
func (q *Queue) Active() []TaskInfo {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]TaskInfo, 0, len(q.active)+len(q.queued))
	for _, set := range []map[string]*Task{q.active, q.queued} {
		for _, t := range set {
			out = append(out, TaskInfo{
				ID:         t.ID,
				Email:      t.Job.Email,
				Task:       t.Job.Task,
				Round:      t.Job.Round,
				Repository: t.Job.RepositoryName,
				Status:     t.Status,
				Worker:     t.Worker,
				CreatedAt:  t.CreatedAt,
				StartedAt:  t.StartedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// drain empties the task channel after Stop. Enqueue refuses new tasks
// once stopped, so the loop terminates.
func (q *Queue) drain(ctx context.Context) int {
	cause := errors.QueueError("job queue stopped before the job started").Build()
	aborter, _ := q.handler.(Aborter)
	n := 0
	for {
		select {
		case t := <-q.tasks:
			q.mu.Lock()
			delete(q.queued, t.ID)
			q.recorder.SetQueueDepth(len(q.tasks))
			q.mu.Unlock()
			n++
			if aborter == nil {
				q.logger.Warn("Dropping queued job", logfields.RunID(t.ID))
				continue
			}
			aborter.Abort(ctx, t, cause)
		default:
			return n
		}
	}
}

func (q *Queue) worker(ctx, base context.Context, workerID string) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case t := <-q.tasks:
			if t != nil {
				q.process(base, t, workerID)
			}
		}
	}
}

func (q *Queue) process(base context.Context, t *Task, workerID string) {
	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if q.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(base, q.jobTimeout)
	} else {
		jobCtx, cancel = context.WithCancel(base)
	}
	defer cancel()

	start := time.Now()
	q.mu.Lock()
	t.cancel = cancel
	t.StartedAt = &start
	t.Status = StatusRunning
	t.Worker = workerID
	delete(q.queued, t.ID)
	q.active[t.ID] = t
	q.recorder.SetQueueDepth(len(q.tasks))
	q.recorder.SetActiveJobs(len(q.active))
	q.mu.Unlock()

	q.logger.Debug("Job picked up", logfields.RunID(t.ID), logfields.Worker(workerID))
	q.handler.Handle(jobCtx, t)

	q.mu.Lock()
	delete(q.active, t.ID)
	q.recorder.SetActiveJobs(len(q.active))
	q.mu.Unlock()
}
