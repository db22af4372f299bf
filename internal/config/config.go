package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "pagesmith.yaml"

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Generation  GenerationConfig  `yaml:"generation"`
	Forge       ForgeConfig       `yaml:"forge"`
	Deploy      DeployConfig      `yaml:"deploy"`
	Notify      NotifyConfig      `yaml:"notify"`
	Retry       RetryConfig       `yaml:"retry"`
	Queue       QueueConfig       `yaml:"queue"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
}

// ServerConfig configures the HTTP intake.
type ServerConfig struct {
	Listen      string   `yaml:"listen"`
	Secret      string   `yaml:"secret"`       // Shared secret expected in job requests
	CORSOrigins []string `yaml:"cors_origins"` // Empty disables CORS handling
	// ReadTimeout and WriteTimeout bound a single request on the intake listener.
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

// GenerationConfig configures the model backend.
type GenerationConfig struct {
	Provider GenerationProvider `yaml:"provider"` // gemini|openai
	APIURL   string             `yaml:"api_url"`
	APIKey   string             `yaml:"api_key"`
	Model    string             `yaml:"model"`
	Timeout  string             `yaml:"timeout"`
}

// ForgeConfig configures the repository host.
type ForgeConfig struct {
	Type           ForgeType      `yaml:"type"`
	APIURL         string         `yaml:"api_url"`
	Owner          string         `yaml:"owner"`
	OwnerType      OwnerType      `yaml:"owner_type"` // user|org
	Token          string         `yaml:"token"`
	Branch         string         `yaml:"branch"`
	CommitStrategy CommitStrategy `yaml:"commit_strategy"` // api|git
	RequestTimeout string         `yaml:"request_timeout"`
}

// DeployConfig configures deployment verification.
type DeployConfig struct {
	PollInterval   string `yaml:"poll_interval"`
	Timeout        string `yaml:"timeout"`
	RequestTimeout string `yaml:"request_timeout"`
	ProbeURL       bool   `yaml:"probe_url"` // Require the published URL to answer 2xx before LIVE
}

// NotifyConfig configures evaluator callbacks.
type NotifyConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxAttempts  int    `yaml:"max_attempts"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

// RetryConfig configures backoff for retryable forge failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff"`
	InitialDelay string           `yaml:"initial_delay"`
	MaxDelay     string           `yaml:"max_delay"`
	MaxRetries   int              `yaml:"max_retries"`
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int    `yaml:"workers"`
	Size       int    `yaml:"size"`
	JobTimeout string `yaml:"job_timeout"`
}

// IdempotencyConfig selects and tunes the idempotency store.
type IdempotencyConfig struct {
	Backend       StoreBackend `yaml:"backend"` // memory|sqlite|nats
	SQLitePath    string       `yaml:"sqlite_path"`
	NATSURL       string       `yaml:"nats_url"`
	NATSBucket    string       `yaml:"nats_bucket"`
	Retention     string       `yaml:"retention"`      // Resolved records older than this are pruned
	PendingTTL    string       `yaml:"pending_ttl"`    // PENDING records older than this may be taken over
	PruneInterval string       `yaml:"prune_interval"` // Zero disables scheduled pruning
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes with ${VAR} expansion, then applies defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := normalize(&cfg); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}
