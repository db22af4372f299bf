// Package deploy waits for a specific commit to be published by the static
// hosting service.
package deploy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/retry"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

// Status is the terminal result of AwaitLive.
type Status string

const (
	StatusLive     Status = "LIVE"
	StatusFailed   Status = "FAILED"
	StatusTimedOut Status = "TIMED_OUT"
)

// Outcome is a DeploymentOutcome. URL is set for LIVE, Reason otherwise.
type Outcome struct {
	Status Status
	URL    string
	Reason string
}

// Err converts a non-LIVE outcome into its failure kind.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusLive:
		return nil
	case StatusTimedOut:
		return errors.DeploymentTimedOut(o.Reason).Build()
	default:
		return errors.DeploymentFailed(o.Reason).Build()
	}
}

// BuildSource reports the latest hosting build of a repository.
type BuildSource interface {
	LatestPagesBuild(ctx context.Context, owner, repo string) (forge.PagesBuild, error)
}

// Verifier waits for a commit to go live.
type Verifier interface {
	AwaitLive(ctx context.Context, ep forge.HostingEndpoint, ref forge.CommitRef, timeout time.Duration) Outcome
}

// PagesVerifier polls BuildSource until the build for the exact commit
// finishes. When probing is enabled the published URL must also answer 2xx.
type PagesVerifier struct {
	source   BuildSource
	client   *http.Client
	interval time.Duration
	probe    bool
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes a PagesVerifier.
type Option func(*PagesVerifier)

// WithHTTPClient sets the client used for URL probing.
func WithHTTPClient(c *http.Client) Option { return func(v *PagesVerifier) { v.client = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(v *PagesVerifier) { v.logger = l } }

// WithSleep replaces the poll wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(v *PagesVerifier) { v.sleep = fn }
}

// NewPagesVerifier creates a verifier from configuration.
func NewPagesVerifier(source BuildSource, cfg config.DeployConfig, opts ...Option) *PagesVerifier {
	v := &PagesVerifier{
		source:   source,
		client:   &http.Client{Timeout: cfg.RequestTimeoutDuration()},
		interval: cfg.PollIntervalDuration(),
		probe:    cfg.ProbeURL,
		logger:   slog.Default(),
		sleep:    retry.Sleep,
	}
	if v.interval <= 0 {
		v.interval = 10 * time.Second
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// AwaitLive implements Verifier. A build for any other commit never counts,
// so LIVE always refers to ref.SHA.
func (v *PagesVerifier) AwaitLive(ctx context.Context, ep forge.HostingEndpoint, ref forge.CommitRef, timeout time.Duration) Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	repo := ep.Owner + "/" + ep.Repo

	for attempt := 1; ; attempt++ {
		build, err := v.source.LatestPagesBuild(ctx, ep.Owner, ep.Repo)
		switch {
		case err != nil && ctx.Err() != nil:
			return v.timedOut(repo, ref)
		case err != nil && !errors.IsRetryable(err):
			return Outcome{Status: StatusFailed, Reason: "hosting status unavailable: " + err.Error()}
		case err != nil:
			v.logger.Warn("Polling hosting build failed", logfields.Repository(repo), logfields.Attempt(attempt), logfields.Error(err))
		case build.Commit == ref.SHA && build.Status == "errored":
			reason := build.Error
			if reason == "" {
				reason = "hosting build errored"
			}
			return Outcome{Status: StatusFailed, Reason: reason}
		case build.Commit == ref.SHA && build.Status == "built":
			if !v.probe || v.probeURL(ctx, ep.URL) {
				v.logger.Info("Deployment live", logfields.Repository(repo), logfields.Commit(ref.SHA), logfields.URL(ep.URL))
				return Outcome{Status: StatusLive, URL: ep.URL}
			}
		default:
			v.logger.Debug("Waiting for hosting build",
				logfields.Repository(repo),
				logfields.Attempt(attempt),
				slog.String("build_status", build.Status),
				slog.String("build_commit", build.Commit))
		}

		if err := v.sleep(ctx, v.interval); err != nil {
			return v.timedOut(repo, ref)
		}
	}
}

func (v *PagesVerifier) timedOut(repo string, ref forge.CommitRef) Outcome {
	v.logger.Warn("Deployment did not go live in time", logfields.Repository(repo), logfields.Commit(ref.SHA))
	return Outcome{Status: StatusTimedOut, Reason: "commit " + ref.SHA + " was not published before the deadline"}
}

func (v *PagesVerifier) probeURL(ctx context.Context, url string) bool {
	if url == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("Probe failed", logfields.URL(url), logfields.Error(err))
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
