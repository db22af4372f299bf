package generation

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/retry"
)

// Request is everything the model sees for one job.
type Request struct {
	Task        string
	Round       int
	Mode        job.Mode
	Brief       string
	Checks      []string
	Attachments []job.Decoded
	// Existing is the current remote FileSet on REVISE; nil on CREATE.
	Existing *fileset.FileSet
}

// Client generates a FileSet. The orchestrator depends on this interface.
type Client interface {
	Generate(ctx context.Context, req Request) (fileset.FileSet, error)
}

// Provider performs one raw model call for a rendered prompt and returns
// the model's text output.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Options tune a Service.
type Options struct {
	Timeout       time.Duration // per model call
	LicenseHolder string        // copyright line of the default LICENSE
	Logger        *slog.Logger
	Now           func() time.Time
	// Sleep overrides the pause before the single transient retry.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Service is the Client backed by a Provider.
type Service struct {
	provider Provider
	opts     Options
	policy   retry.Policy
}

// NewService wires a Provider into a Client.
func NewService(p Provider, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	return &Service{
		provider: p,
		opts:     opts,
		// One bounded retry, transient transport errors only.
		policy: retry.NewPolicy(config.RetryBackoffFixed, 2*time.Second, 2*time.Second, 1),
	}
}

// Generate renders the prompt, calls the model and assembles the FileSet.
func (s *Service) Generate(ctx context.Context, req Request) (fileset.FileSet, error) {
	prompt := BuildPrompt(req)

	var raw string
	err := retry.Do(ctx, s.policy, retry.Options{
		Sleep: s.opts.Sleep,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			s.opts.Logger.Warn("Model call failed, retrying",
				logfields.Provider(s.provider.Name()),
				logfields.Attempt(attempt),
				logfields.Error(err))
		},
	}, func(ctx context.Context, _ int) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
		out, err := s.provider.Complete(callCtx, prompt)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindInternal {
			err = errors.GenerationFailed("model call failed").WithCause(err).Build()
		}
		return fileset.FileSet{}, err
	}

	entries, err := ParseResponse(raw)
	if err != nil {
		return fileset.FileSet{}, err
	}
	fs, err := s.assemble(req, entries)
	if err != nil {
		return fileset.FileSet{}, err
	}

	if dangling := fileset.DanglingReferences(fs); len(dangling) > 0 {
		s.opts.Logger.Warn("Generated site references missing files",
			logfields.Task(req.Task),
			slog.Any("references", dangling))
	}
	return fs, nil
}
