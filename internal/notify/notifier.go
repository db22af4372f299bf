// Package notify reports terminal job outcomes to the evaluator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/retry"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

// Status values carried in Payload.Status.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Payload is the evaluator callback body.
type Payload struct {
	Email         string `json:"email"`
	Task          string `json:"task"`
	Round         int    `json:"round"`
	Nonce         string `json:"nonce"`
	RepoURL       string `json:"repo_url,omitempty"`
	CommitSHA     string `json:"commit_sha,omitempty"`
	PagesURL      string `json:"pages_url,omitempty"`
	Status        string `json:"status"`
	FailureKind   string `json:"failure_kind,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Notifier delivers a payload to target.
type Notifier interface {
	Notify(ctx context.Context, target string, p Payload) error
}

// HTTPNotifier POSTs JSON payloads with bounded retry.
type HTTPNotifier struct {
	client   *http.Client
	timeout  time.Duration
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes an HTTPNotifier.
type Option func(*HTTPNotifier)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(n *HTTPNotifier) { n.client = c } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(n *HTTPNotifier) { n.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(n *HTTPNotifier) { n.logger = l } }

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(n *HTTPNotifier) { n.sleep = fn }
}

// NewHTTPNotifier creates a notifier from configuration. MaxAttempts counts
// the first call.
func NewHTTPNotifier(cfg config.NotifyConfig, opts ...Option) *HTTPNotifier {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	n := &HTTPNotifier{
		client:   &http.Client{},
		timeout:  cfg.TimeoutDuration(),
		policy:   retry.NewPolicy(config.RetryBackoffExponential, cfg.InitialDelayDuration(), cfg.MaxDelayDuration(), attempts-1),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		sleep:    retry.Sleep,
	}
	if n.timeout <= 0 {
		n.timeout = 15 * time.Second
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Notify implements Notifier. It returns NotifyFailed once every attempt
// has failed or a non-retryable response was received.
func (n *HTTPNotifier) Notify(ctx context.Context, target string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.NotifyFailed("failed to encode payload").WithCause(err).Permanent().Build()
	}

	err = retry.Do(ctx, n.policy, retry.Options{
		Sleep: n.sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			n.logger.Warn("Evaluator notification failed, retrying",
				logfields.URL(target),
				logfields.Attempt(attempt),
				slog.Duration("delay", delay),
				logfields.Error(err))
		},
	}, func(ctx context.Context, _ int) error {
		err := n.post(ctx, target, body)
		n.recorder.IncNotifyAttempt(err == nil)
		return err
	})
	if err != nil {
		return err
	}
	n.logger.Info("Evaluator notified", logfields.URL(target), logfields.Task(p.Task), logfields.Round(p.Round))
	return nil
}

func (n *HTTPNotifier) post(ctx context.Context, target string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return errors.NotifyFailed("invalid evaluation URL").WithCause(err).Permanent().Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.NotifyFailed("evaluator unreachable").WithCause(err).Build()
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return errors.NotifyFailed(fmt.Sprintf("evaluator responded %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			Build()
	default:
		return errors.NotifyFailed(fmt.Sprintf("evaluator rejected notification: %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			Permanent().
			Build()
	}
}
