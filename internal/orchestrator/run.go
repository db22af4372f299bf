package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
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

// Outcome is the terminal result of one run.
type Outcome struct {
	RunID  string
	Status idempotency.Status // SUCCEEDED or FAILED
	Result idempotency.Result
	// Trace lists every state entered, in order.
	Trace []State
	// Notified is true when the evaluator acknowledged the callback.
	Notified bool
	// Duplicate marks an outcome served from the idempotency record.
	Duplicate bool
	// Abandoned marks a run that found its claim taken over and did nothing.
	Abandoned bool
}

// Err returns the failure as a classified error, or nil on success.
func (o Outcome) Err() error {
	if o.Status != idempotency.StatusFailed {
		return nil
	}
	return errors.NewError(errors.CategoryRuntime, o.Result.FailureReason).
		WithKind(errors.Kind(o.Result.FailureKind)).
		Build()
}

// run carries the mutable state of one pipeline execution.
type run struct {
	o     *Orchestrator
	job   job.Job
	id    string
	log   *slog.Logger
	state State
	trace []State
	start time.Time

	repo   forge.Repo
	commit forge.CommitRef
	ep     forge.HostingEndpoint
}

func (r *run) enter(s State) {
	r.state = s
	r.trace = append(r.trace, s)
	r.log.Info("State transition", logfields.State(string(s)))
}

// Run executes steps GENERATING through NOTIFYING for a claimed job and
// resolves its idempotency record. It returns a terminal Outcome, or an
// abandoned one when the claim was taken over before the run started.
func (o *Orchestrator) Run(ctx context.Context, j job.Job, runID string) Outcome {
	r := o.newRun(j, runID)
	if !r.begin(ctx) {
		r.log.Warn("Idempotency claim no longer held, abandoning run")
		return Outcome{RunID: runID, Trace: r.trace, Abandoned: true}
	}
	return r.finish(ctx, r.pipeline(ctx))
}

// Abort resolves a claimed job that will never run as FAILED and notifies
// the evaluator.
func (o *Orchestrator) Abort(ctx context.Context, t *queue.Task, cause error) {
	r := o.newRun(t.Job, t.ID)
	r.finish(ctx, cause)
}

func (o *Orchestrator) newRun(j job.Job, runID string) *run {
	r := &run{o: o, job: j, id: runID, log: o.jobLogger(j, runID), start: o.opts.Now()}
	r.trace = []State{StateReceived}
	return r
}

// begin refreshes the PENDING record of this run so time spent queued does
// not count toward the takeover window. It reports whether the run still
// owns the record.
func (r *run) begin(ctx context.Context) bool {
	key := r.job.Key()
	cur, ok, err := r.o.Store.Get(ctx, key)
	if err != nil {
		r.log.Error("Failed to read idempotency record", logfields.Error(err))
		return true
	}
	if !ok || cur.RunID != r.id || cur.Status != idempotency.StatusPending {
		return false
	}
	next := cur
	next.UpdatedAt = r.o.opts.Now()
	if _, err := r.o.Store.CompareAndSwap(ctx, key, cur.Revision, next); err != nil {
		if stderrors.Is(err, idempotency.ErrConflict) {
			return false
		}
		r.log.Error("Failed to refresh idempotency record", logfields.Error(err))
	}
	return true
}

func (r *run) finish(ctx context.Context, err error) Outcome {
	o := r.o
	out := Outcome{RunID: r.id, Status: idempotency.StatusSucceeded}
	out.Result.RepoURL = r.repo.HTMLURL
	out.Result.CommitSHA = r.commit.SHA
	out.Result.PagesURL = r.ep.URL
	if err != nil {
		out.Status = idempotency.StatusFailed
		out.Result.FailureKind, out.Result.FailureReason = r.failure(ctx, err)
		r.log.Error("Job failed",
			logfields.State(string(r.state)),
			logfields.Kind(out.Result.FailureKind),
			logfields.Error(err))
	}

	// The rest must complete even when the job deadline has passed.
	bg := context.WithoutCancel(ctx)
	owned := r.resolve(bg, out)

	if owned {
		r.enter(StateNotifying)
		out.Notified = r.notify(bg, out)
	}

	final := StateDone
	if out.Status == idempotency.StatusFailed {
		final = StateFailed
	}
	r.enter(final)
	out.Trace = r.trace

	elapsed := o.opts.Now().Sub(r.start)
	o.opts.Recorder.ObserveJobDuration(elapsed)
	if out.Status == idempotency.StatusSucceeded {
		o.opts.Recorder.IncJobOutcome("success", "")
	} else {
		o.opts.Recorder.IncJobOutcome("failure", out.Result.FailureKind)
	}
	r.log.Info("Job finished",
		slog.String("status", string(out.Status)),
		logfields.DurationMS(float64(elapsed.Milliseconds())),
		logfields.URL(out.Result.PagesURL))
	return out
}

func (r *run) pipeline(ctx context.Context) error {
	r.enter(StateGenerating)
	// The repository is read in GENERATING (REVISE) and written until
	// VERIFYING, so the lock spans all of them.
	unlock, err := r.o.locks.Lock(ctx, r.job.RepositoryName)
	if err != nil {
		return err
	}
	defer unlock()

	var files fileset.FileSet
	if err := r.stage(StateGenerating, func() error {
		files, err = r.generate(ctx)
		return err
	}); err != nil {
		return err
	}

	r.enter(StateSyncingRepo)
	if err := r.stage(StateSyncingRepo, func() error { return r.sync(ctx, files) }); err != nil {
		return err
	}

	r.enter(StateDeploying)
	if err := r.stage(StateDeploying, func() error {
		return r.withRetry(ctx, StateDeploying, func(ctx context.Context) error {
			ep, err := r.o.Forge.EnableStaticHosting(ctx, r.repo)
			r.ep = ep
			return err
		})
	}); err != nil {
		return err
	}

	r.enter(StateVerifying)
	return r.stage(StateVerifying, func() error {
		res := r.o.Verifier.AwaitLive(ctx, r.ep, r.commit, r.o.opts.DeployTimeout)
		if res.URL != "" {
			r.ep.URL = res.URL
		}
		return res.Err()
	})
}

// stage times fn and records its result.
func (r *run) stage(s State, fn func() error) error {
	start := r.o.opts.Now()
	err := fn()
	r.o.opts.Recorder.ObserveStageDuration(s.stage(), r.o.opts.Now().Sub(start))
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	r.o.opts.Recorder.IncStageResult(s.stage(), result)
	return err
}

func (r *run) generate(ctx context.Context) (fileset.FileSet, error) {
	attachments, err := r.job.DecodeAttachments()
	if err != nil {
		return fileset.FileSet{}, err
	}
	req := generation.Request{
		Task:        r.job.Task,
		Round:       r.job.Round,
		Mode:        r.job.Mode(),
		Brief:       r.job.Brief,
		Checks:      append([]string(nil), r.job.Checks...),
		Attachments: attachments,
	}
	if r.job.Mode() == job.ModeRevise {
		var existing fileset.FileSet
		err := r.withRetry(ctx, StateGenerating, func(ctx context.Context) error {
			var ferr error
			existing, ferr = r.o.Forge.FetchFileSet(ctx, r.job.RepositoryName, r.job.Task)
			return ferr
		})
		if err != nil {
			return fileset.FileSet{}, err
		}
		req.Existing = &existing
		r.log.Debug("Fetched current repository content", logfields.Files(existing.Len()))
	}

	files, err := r.o.Generator.Generate(ctx, req)
	if err != nil {
		return fileset.FileSet{}, err
	}
	if files.Empty() {
		return fileset.FileSet{}, errors.GenerationFailed("model returned no files").Build()
	}
	r.log.Info("Generated files", logfields.Files(files.Len()), slog.Int("bytes", files.Size()))
	return files, nil
}

func (r *run) sync(ctx context.Context, files fileset.FileSet) error {
	err := r.withRetry(ctx, StateSyncingRepo, func(ctx context.Context) error {
		repo, err := r.o.Forge.EnsureRepository(ctx, r.job.RepositoryName, r.job.Task)
		r.repo = repo
		return err
	})
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("pagesmith: %s round %d (%s)", r.job.Task, r.job.Round, r.job.Mode())
	return r.withRetry(ctx, StateSyncingRepo, func(ctx context.Context) error {
		ref, err := r.o.Forge.CommitFileSet(ctx, r.repo, files, msg)
		r.commit = ref
		return err
	})
}

func (r *run) withRetry(ctx context.Context, s State, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.o.opts.RetryPolicy, retry.Options{
		Sleep: r.o.opts.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			r.o.opts.Recorder.IncRetry(s.stage())
			r.o.opts.Recorder.IncStageResult(s.stage(), metrics.ResultRetry)
			r.log.Warn("Retrying stage",
				logfields.Stage(s.stage()),
				logfields.Attempt(attempt),
				slog.Duration("delay", delay),
				logfields.Kind(string(errors.KindOf(err))),
				logfields.Error(err))
		},
	}, func(ctx context.Context, _ int) error { return fn(ctx) })
}

// failure maps err to the notify payload's kind and reason.
func (r *run) failure(ctx context.Context, err error) (string, string) {
	kind := errors.KindOf(err)
	reason := err.Error()
	if c, ok := errors.AsClassified(err); ok {
		reason = c.Message()
	}
	if ctx.Err() != nil && kind == errors.KindInternal {
		reason = fmt.Sprintf("job deadline exceeded during %s", r.state)
	}
	return string(kind), reason
}

// resolve moves the record from PENDING to its terminal status. It reports
// whether this run still owned the record; only the owner notifies.
func (r *run) resolve(ctx context.Context, out Outcome) bool {
	key := r.job.Key()
	cur, ok, err := r.o.Store.Get(ctx, key)
	if err != nil {
		// Without the store we cannot prove ownership; notify anyway so
		// the evaluator is not left waiting.
		r.log.Error("Failed to read idempotency record", logfields.Error(err))
		return true
	}
	if !ok || cur.RunID != r.id || cur.Status != idempotency.StatusPending {
		r.log.Warn("Idempotency record owned by another run, skipping notification")
		return false
	}
	next := cur
	next.Status = out.Status
	res := out.Result
	next.Result = &res
	next.UpdatedAt = r.o.opts.Now()
	if _, err := r.o.Store.CompareAndSwap(ctx, key, cur.Revision, next); err != nil {
		if stderrors.Is(err, idempotency.ErrConflict) {
			r.log.Warn("Idempotency record changed underneath run, skipping notification")
			return false
		}
		r.log.Error("Failed to resolve idempotency record", logfields.Error(err))
		return true
	}
	return true
}

func (r *run) notify(ctx context.Context, out Outcome) bool {
	p := notify.Payload{
		Email:         r.job.Email,
		Task:          r.job.Task,
		Round:         r.job.Round,
		Nonce:         r.job.Nonce,
		RepoURL:       out.Result.RepoURL,
		CommitSHA:     out.Result.CommitSHA,
		PagesURL:      out.Result.PagesURL,
		Status:        notify.StatusSucceeded,
		FailureKind:   out.Result.FailureKind,
		FailureReason: out.Result.FailureReason,
	}
	if out.Status == idempotency.StatusFailed {
		p.Status = notify.StatusFailed
	}
	if err := r.o.Notifier.Notify(ctx, r.job.EvaluationURL, p); err != nil {
		r.log.Error("Evaluator notification exhausted",
			logfields.URL(r.job.EvaluationURL),
			logfields.Kind(string(errors.KindNotifyFailed)),
			logfields.Error(err))
		return false
	}
	return true
}
