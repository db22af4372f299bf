// Package orchestrator drives one job through generation, repository sync,
// deployment, verification and evaluator notification, exactly once per
// identity.
package orchestrator

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagesmith/internal/deploy"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/generation"
	"git.home.luguber.info/inful/pagesmith/internal/idempotency"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/notify"
	"git.home.luguber.info/inful/pagesmith/internal/queue"
	"git.home.luguber.info/inful/pagesmith/internal/retry"
)

// Acknowledgement statuses.
const (
	AckAccepted  = "accepted"
	AckDuplicate = "duplicate"
)

// Ack is the synchronous answer to a submission.
type Ack struct {
	Status string `json:"status"`
	Task   string `json:"task"`
	Round  int    `json:"round"`
	RunID  string `json:"run_id,omitempty"`
	// State and Outcome are set for duplicates of resolved jobs.
	State   idempotency.Status  `json:"state,omitempty"`
	Outcome *idempotency.Result `json:"outcome,omitempty"`
}

// Enqueuer accepts detached work.
type Enqueuer interface {
	Enqueue(t *queue.Task) error
}

// Deps are the collaborators of an Orchestrator. All are required except
// Enqueuer, which only Submit needs.
type Deps struct {
	Store     idempotency.Store
	Generator generation.Client
	Forge     forge.Provisioner
	Verifier  deploy.Verifier
	Notifier  notify.Notifier
	Enqueuer  Enqueuer
}

// Options tune an Orchestrator.
type Options struct {
	RetryPolicy   retry.Policy  // forge calls
	DeployTimeout time.Duration // AwaitLive budget
	PendingTTL    time.Duration // PENDING records older than this may be taken over
	Recorder      metrics.Recorder
	Logger        *slog.Logger
	Now           func() time.Time
	NewID         func() string
	Sleep         func(ctx context.Context, d time.Duration) error
}

// Orchestrator implements the job state machine.
type Orchestrator struct {
	Deps
	opts  Options
	locks *repoLocks
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.RetryPolicy.Initial <= 0 {
		opts.RetryPolicy = retry.DefaultPolicy()
	}
	if opts.DeployTimeout <= 0 {
		opts.DeployTimeout = 10 * time.Minute
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = time.Hour
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	return &Orchestrator{Deps: deps, opts: opts, locks: newRepoLocks()}
}

// Submit records the job as PENDING and hands it to the queue. Duplicates
// are acknowledged without running anything.
func (o *Orchestrator) Submit(ctx context.Context, j job.Job) (Ack, error) {
	if o.Enqueuer == nil {
		return Ack{}, errors.InternalError("orchestrator has no queue").Build()
	}
	runID := o.opts.NewID()
	log := o.jobLogger(j, runID)

	rec, dup, err := o.claim(ctx, j, runID)
	if err != nil {
		o.opts.Recorder.IncSubmission("rejected")
		return Ack{}, err
	}
	if dup != nil {
		o.opts.Recorder.IncSubmission(AckDuplicate)
		log.Info("Duplicate submission", slog.String("record_status", string(dup.State)))
		return *dup, nil
	}

	if err := o.Enqueuer.Enqueue(&queue.Task{ID: runID, Job: j.Clone(), CreatedAt: o.opts.Now()}); err != nil {
		// Release the claim so a redelivery can run.
		if derr := o.Store.Delete(context.WithoutCancel(ctx), j.Key(), rec.Revision); derr != nil {
			log.Error("Failed to release idempotency claim", logfields.Error(derr))
		}
		o.opts.Recorder.IncSubmission("rejected")
		return Ack{}, err
	}

	o.opts.Recorder.IncSubmission(AckAccepted)
	log.Info("Job accepted", logfields.State(string(StateReceived)))
	return Ack{Status: AckAccepted, Task: j.Task, Round: j.Round, RunID: runID}, nil
}

var _ queue.Aborter = (*Orchestrator)(nil)

// Handle implements queue.Handler.
func (o *Orchestrator) Handle(ctx context.Context, t *queue.Task) {
	o.Run(ctx, t.Job, t.ID)
}

// Execute claims and runs a job synchronously. A duplicate returns the
// cached outcome of the earlier run, or an error while it is still pending.
func (o *Orchestrator) Execute(ctx context.Context, j job.Job) (Outcome, error) {
	runID := o.opts.NewID()
	_, dup, err := o.claim(ctx, j, runID)
	if err != nil {
		return Outcome{}, err
	}
	if dup != nil {
		if dup.Outcome == nil {
			return Outcome{}, errors.QueueError("job is already running").
				WithContext("task", j.Task).
				Build()
		}
		return Outcome{
			RunID:     dup.RunID,
			Status:    dup.State,
			Result:    *dup.Outcome,
			Duplicate: true,
		}, nil
	}
	return o.Run(ctx, j, runID), nil
}

// claim performs the atomic read-check-write on the idempotency store.
// It returns the new PENDING record, or a duplicate Ack.
func (o *Orchestrator) claim(ctx context.Context, j job.Job, runID string) (idempotency.Record, *Ack, error) {
	key := j.Key()
	now := o.opts.Now()
	pending := idempotency.Record{
		Status:    idempotency.StatusPending,
		RunID:     runID,
		Task:      j.Task,
		Round:     j.Round,
		CreatedAt: now,
		UpdatedAt: now,
	}
	duplicate := func(r idempotency.Record) *Ack {
		ack := &Ack{Status: AckDuplicate, Task: j.Task, Round: j.Round, RunID: r.RunID, State: r.Status}
		if r.Status.Resolved() && r.Result != nil {
			res := *r.Result
			ack.Outcome = &res
		}
		return ack
	}

	cur, ok, err := o.Store.Get(ctx, key)
	if err != nil {
		return idempotency.Record{}, nil, err
	}
	var expected uint64
	if ok {
		stale := cur.Status == idempotency.StatusPending && now.Sub(cur.UpdatedAt) > o.opts.PendingTTL
		if !stale {
			return idempotency.Record{}, duplicate(cur), nil
		}
		o.jobLogger(j, runID).Warn("Taking over stale pending job", slog.String("previous_run_id", cur.RunID))
		expected = cur.Revision
	}

	rec, err := o.Store.CompareAndSwap(ctx, key, expected, pending)
	if stderrors.Is(err, idempotency.ErrConflict) {
		// Lost the race; report what won.
		if cur, ok, gerr := o.Store.Get(ctx, key); gerr == nil && ok {
			return idempotency.Record{}, duplicate(cur), nil
		}
		return idempotency.Record{}, &Ack{Status: AckDuplicate, Task: j.Task, Round: j.Round}, nil
	}
	if err != nil {
		return idempotency.Record{}, nil, err
	}
	return rec, nil, nil
}

func (o *Orchestrator) jobLogger(j job.Job, runID string) *slog.Logger {
	return o.opts.Logger.With(
		logfields.RunID(runID),
		logfields.Email(j.Email),
		logfields.Task(j.Task),
		logfields.Round(j.Round),
		logfields.Nonce(j.Nonce),
	)
}
