package config

import "time"

// parseDuration parses a validated duration field. Invalid input yields zero;
// Validate rejects such configs before they are used.
func parseDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func (s ServerConfig) ReadTimeoutDuration() time.Duration  { return parseDuration(s.ReadTimeout) }
func (s ServerConfig) WriteTimeoutDuration() time.Duration { return parseDuration(s.WriteTimeout) }

func (g GenerationConfig) TimeoutDuration() time.Duration { return parseDuration(g.Timeout) }

func (f ForgeConfig) RequestTimeoutDuration() time.Duration { return parseDuration(f.RequestTimeout) }

func (d DeployConfig) PollIntervalDuration() time.Duration   { return parseDuration(d.PollInterval) }
func (d DeployConfig) TimeoutDuration() time.Duration        { return parseDuration(d.Timeout) }
func (d DeployConfig) RequestTimeoutDuration() time.Duration { return parseDuration(d.RequestTimeout) }

func (n NotifyConfig) TimeoutDuration() time.Duration      { return parseDuration(n.Timeout) }
func (n NotifyConfig) InitialDelayDuration() time.Duration { return parseDuration(n.InitialDelay) }
func (n NotifyConfig) MaxDelayDuration() time.Duration     { return parseDuration(n.MaxDelay) }

func (r RetryConfig) InitialDelayDuration() time.Duration { return parseDuration(r.InitialDelay) }
func (r RetryConfig) MaxDelayDuration() time.Duration     { return parseDuration(r.MaxDelay) }

func (q QueueConfig) JobTimeoutDuration() time.Duration { return parseDuration(q.JobTimeout) }

func (i IdempotencyConfig) RetentionDuration() time.Duration     { return parseDuration(i.Retention) }
func (i IdempotencyConfig) PendingTTLDuration() time.Duration    { return parseDuration(i.PendingTTL) }
func (i IdempotencyConfig) PruneIntervalDuration() time.Duration { return parseDuration(i.PruneInterval) }
