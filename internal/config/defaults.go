package config

// Default values applied when a field is omitted.
const (
	defaultListen          = ":8080"
	defaultGeminiURL       = "https://generativelanguage.googleapis.com"
	defaultOpenAIURL       = "https://api.openai.com/v1"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultGitHubAPI       = "https://api.github.com"
	defaultBranch          = "main"
	defaultNATSBucket      = "pagesmith_jobs"
	defaultSQLitePath      = "pagesmith.db"
	defaultMetricsPath     = "/metrics"
	defaultWorkers         = 4
	defaultQueueSize       = 100
	defaultNotifyAttempts  = 5
	defaultForgeMaxRetries = 3
)

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	setString(&s.Listen, defaultListen)
	setString(&s.ReadTimeout, "30s")
	setString(&s.WriteTimeout, "30s")

	g := &cfg.Generation
	if g.Provider == "" {
		g.Provider = ProviderGemini
	}
	switch g.Provider {
	case ProviderOpenAI:
		setString(&g.APIURL, defaultOpenAIURL)
		setString(&g.Model, defaultOpenAIModel)
	default:
		setString(&g.APIURL, defaultGeminiURL)
		setString(&g.Model, defaultGeminiModel)
	}
	setString(&g.Timeout, "180s")

	f := &cfg.Forge
	if f.Type == "" {
		f.Type = ForgeGitHub
	}
	if f.OwnerType == "" {
		f.OwnerType = OwnerUser
	}
	if f.CommitStrategy == "" {
		f.CommitStrategy = CommitViaAPI
	}
	setString(&f.APIURL, defaultGitHubAPI)
	setString(&f.Branch, defaultBranch)
	setString(&f.RequestTimeout, "30s")

	d := &cfg.Deploy
	setString(&d.PollInterval, "10s")
	setString(&d.Timeout, "10m")
	setString(&d.RequestTimeout, "15s")

	n := &cfg.Notify
	setString(&n.Timeout, "15s")
	setString(&n.InitialDelay, "1s")
	setString(&n.MaxDelay, "30s")
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = defaultNotifyAttempts
	}

	r := &cfg.Retry
	if r.Backoff == "" {
		r.Backoff = RetryBackoffExponential
	}
	setString(&r.InitialDelay, "2s")
	setString(&r.MaxDelay, "60s")
	if r.MaxRetries <= 0 {
		r.MaxRetries = defaultForgeMaxRetries
	}

	q := &cfg.Queue
	if q.Workers <= 0 {
		q.Workers = defaultWorkers
	}
	if q.Size <= 0 {
		q.Size = defaultQueueSize
	}
	setString(&q.JobTimeout, "20m")

	i := &cfg.Idempotency
	if i.Backend == "" {
		i.Backend = BackendMemory
	}
	setString(&i.SQLitePath, defaultSQLitePath)
	setString(&i.NATSBucket, defaultNATSBucket)
	setString(&i.Retention, "168h")
	setString(&i.PendingTTL, "1h")
	setString(&i.PruneInterval, "15m")

	m := &cfg.Monitoring
	setString(&m.Metrics.Path, defaultMetricsPath)
	if m.Logging.Level == "" {
		m.Logging.Level = LogLevelInfo
	}
	if m.Logging.Format == "" {
		m.Logging.Format = LogFormatText
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
