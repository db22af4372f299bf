package daemon

import (
	"context"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/deploy"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/generation"
	"git.home.luguber.info/inful/pagesmith/internal/git"
	"git.home.luguber.info/inful/pagesmith/internal/idempotency"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
	"git.home.luguber.info/inful/pagesmith/internal/metrics"
	"git.home.luguber.info/inful/pagesmith/internal/notify"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
	"git.home.luguber.info/inful/pagesmith/internal/retry"
)

// Components overrides collaborators built from configuration. Nil fields
// are built normally.
type Components struct {
	Store     idempotency.Store
	Generator generation.Client
	Forge     forge.Provisioner
	Verifier  deploy.Verifier
	Notifier  notify.Notifier
}

// BuildPipeline wires an orchestrator from configuration. The returned store
// is owned by the caller.
func BuildPipeline(ctx context.Context, cfg *config.Config, c Components, recorder metrics.Recorder, logger *slog.Logger) (*orchestrator.Orchestrator, idempotency.Store, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	if c.Generator == nil {
		provider, err := generation.NewProvider(cfg.Generation, &http.Client{})
		if err != nil {
			return nil, nil, errors.WrapError(err, errors.CategoryConfig, "generation provider").Build()
		}
		c.Generator = generation.NewService(provider, generation.Options{
			Timeout:       cfg.Generation.TimeoutDuration(),
			LicenseHolder: cfg.Forge.Owner,
			Logger:        logger,
		})
		logger.Info("Generation provider ready", logfields.Provider(provider.Name()))
	}

	if c.Forge == nil {
		var opts []forge.GitHubOption
		opts = append(opts, forge.WithLogger(logger))
		if cfg.Forge.CommitStrategy == config.CommitViaGit {
			opts = append(opts, forge.WithCommitter(git.NewCommitter(cfg.Forge.Token, git.WithLogger(logger))))
		}
		p, err := forge.New(cfg.Forge, opts...)
		if err != nil {
			return nil, nil, err
		}
		c.Forge = p
	}

	if c.Verifier == nil {
		source, ok := c.Forge.(deploy.BuildSource)
		if !ok {
			return nil, nil, errors.ConfigError("forge does not report hosting builds").
				WithContext("forge", string(cfg.Forge.Type)).
				Build()
		}
		c.Verifier = deploy.NewPagesVerifier(source, cfg.Deploy, deploy.WithLogger(logger))
	}

	if c.Notifier == nil {
		c.Notifier = notify.NewHTTPNotifier(cfg.Notify, notify.WithRecorder(recorder), notify.WithLogger(logger))
	}

	if c.Store == nil {
		s, err := idempotency.Open(ctx, cfg.Idempotency)
		if err != nil {
			return nil, nil, err
		}
		c.Store = s
	}

	orch := orchestrator.New(orchestrator.Deps{
		Store:     c.Store,
		Generator: c.Generator,
		Forge:     c.Forge,
		Verifier:  c.Verifier,
		Notifier:  c.Notifier,
	}, orchestrator.Options{
		RetryPolicy:   retry.FromConfig(cfg.Retry),
		DeployTimeout: cfg.Deploy.TimeoutDuration(),
		PendingTTL:    cfg.Idempotency.PendingTTLDuration(),
		Recorder:      recorder,
		Logger:        logger,
	})
	return orch, c.Store, nil
}
