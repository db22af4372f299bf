package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks a defaulted configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	positive := map[string]string{
		"server.read_timeout":     cfg.Server.ReadTimeout,
		"server.write_timeout":    cfg.Server.WriteTimeout,
		"generation.timeout":      cfg.Generation.Timeout,
		"forge.request_timeout":   cfg.Forge.RequestTimeout,
		"deploy.poll_interval":    cfg.Deploy.PollInterval,
		"deploy.timeout":          cfg.Deploy.Timeout,
		"deploy.request_timeout":  cfg.Deploy.RequestTimeout,
		"notify.timeout":          cfg.Notify.Timeout,
		"notify.initial_delay":    cfg.Notify.InitialDelay,
		"notify.max_delay":        cfg.Notify.MaxDelay,
		"retry.initial_delay":     cfg.Retry.InitialDelay,
		"retry.max_delay":         cfg.Retry.MaxDelay,
		"queue.job_timeout":       cfg.Queue.JobTimeout,
		"idempotency.retention":   cfg.Idempotency.Retention,
		"idempotency.pending_ttl": cfg.Idempotency.PendingTTL,
	}
	for field, raw := range positive {
		d, err := time.ParseDuration(raw)
		if err != nil {
			add("%s: invalid duration %q", field, raw)
			continue
		}
		if d <= 0 {
			add("%s: must be > 0", field)
		}
	}
	if d, err := time.ParseDuration(cfg.Idempotency.PruneInterval); err != nil || d < 0 {
		add("idempotency.prune_interval: invalid duration %q", cfg.Idempotency.PruneInterval)
	}

	if cfg.Generation.APIKey == "" {
		add("generation.api_key is required")
	}
	if cfg.Forge.Owner == "" {
		add("forge.owner is required")
	}
	if cfg.Forge.Token == "" {
		add("forge.token is required")
	}
	for field, raw := range map[string]string{
		"generation.api_url": cfg.Generation.APIURL,
		"forge.api_url":      cfg.Forge.APIURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			add("%s: invalid URL %q", field, raw)
		}
	}
	if strings.ContainsAny(cfg.Forge.Branch, " ~^:?*[\\") {
		add("forge.branch: invalid branch name %q", cfg.Forge.Branch)
	}

	if cfg.Queue.Workers <= 0 {
		add("queue.workers must be > 0")
	}
	if cfg.Queue.Size <= 0 {
		add("queue.size must be > 0")
	}
	if cfg.Notify.MaxAttempts <= 0 {
		add("notify.max_attempts must be > 0")
	}
	if cfg.Retry.MaxRetries < 0 {
		add("retry.max_retries cannot be negative")
	}

	switch cfg.Idempotency.Backend {
	case BackendSQLite:
		if cfg.Idempotency.SQLitePath == "" {
			add("idempotency.sqlite_path is required for the sqlite backend")
		}
	case BackendNATS:
		if cfg.Idempotency.NATSURL == "" {
			add("idempotency.nats_url is required for the nats backend")
		}
	}
	// A PENDING record must outlive the job that owns it, otherwise a redelivery
	// could take over a job that is still running.
	if jt, pt := cfg.Queue.JobTimeoutDuration(), cfg.Idempotency.PendingTTLDuration(); jt > 0 && pt > 0 && pt < jt {
		add("idempotency.pending_ttl (%s) must be >= queue.job_timeout (%s)", pt, jt)
	}

	if cfg.Monitoring.Metrics.Enabled && !strings.HasPrefix(cfg.Monitoring.Metrics.Path, "/") {
		add("monitoring.metrics.path must start with /")
	}

	return errors.Join(errs...)
}
