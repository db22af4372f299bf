package config

import "git.home.luguber.info/inful/pagesmith/internal/foundation/normalization"

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// GenerationProvider selects the model API dialect.
type GenerationProvider string

const (
	ProviderGemini GenerationProvider = "gemini"
	ProviderOpenAI GenerationProvider = "openai"
)

// ForgeType selects the repository host implementation.
type ForgeType string

const ForgeGitHub ForgeType = "github"

// OwnerType tells whether repositories are created for a user or an organization.
type OwnerType string

const (
	OwnerUser OwnerType = "user"
	OwnerOrg  OwnerType = "org"
)

// CommitStrategy selects how a FileSet is written to the repository.
type CommitStrategy string

const (
	CommitViaAPI CommitStrategy = "api" // Git Data API: blobs, tree, commit, ref update
	CommitViaGit CommitStrategy = "git" // in-memory clone, commit and push
)

// StoreBackend selects the idempotency store.
type StoreBackend string

const (
	BackendMemory StoreBackend = "memory"
	BackendSQLite StoreBackend = "sqlite"
	BackendNATS   StoreBackend = "nats"
)

var (
	logLevels = normalization.NewNormalizer("log level", map[string]LogLevel{
		"debug": LogLevelDebug, "info": LogLevelInfo, "warn": LogLevelWarn, "warning": LogLevelWarn, "error": LogLevelError,
	}, LogLevelInfo)
	logFormats = normalization.NewNormalizer("log format", map[string]LogFormat{
		"json": LogFormatJSON, "text": LogFormatText,
	}, LogFormatText)
	backoffModes = normalization.NewNormalizer("retry backoff", map[string]RetryBackoffMode{
		"fixed": RetryBackoffFixed, "linear": RetryBackoffLinear, "exponential": RetryBackoffExponential,
	}, RetryBackoffExponential)
	providers = normalization.NewNormalizer("generation provider", map[string]GenerationProvider{
		"gemini": ProviderGemini, "openai": ProviderOpenAI,
	}, ProviderGemini)
	forgeTypes = normalization.NewNormalizer("forge type", map[string]ForgeType{
		"github": ForgeGitHub,
	}, ForgeGitHub)
	ownerTypes = normalization.NewNormalizer("owner type", map[string]OwnerType{
		"user": OwnerUser, "org": OwnerOrg, "organization": OwnerOrg,
	}, OwnerUser)
	commitStrategies = normalization.NewNormalizer("commit strategy", map[string]CommitStrategy{
		"api": CommitViaAPI, "git": CommitViaGit,
	}, CommitViaAPI)
	storeBackends = normalization.NewNormalizer("idempotency backend", map[string]StoreBackend{
		"memory": BackendMemory, "sqlite": BackendSQLite, "nats": BackendNATS,
	}, BackendMemory)
)

// NormalizeLogLevel case-folds a level, returning info for unknown input.
func NormalizeLogLevel(raw string) LogLevel { return logLevels.Normalize(raw) }

// NormalizeLogFormat case-folds a format, returning text for unknown input.
func NormalizeLogFormat(raw string) LogFormat { return logFormats.Normalize(raw) }

// NormalizeRetryBackoff case-folds a backoff mode, returning exponential for unknown input.
func NormalizeRetryBackoff(raw string) RetryBackoffMode { return backoffModes.Normalize(raw) }
