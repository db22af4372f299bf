package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes reported by the pagesmith CLI.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitAuth       = 5
	ExitConfig     = 7
	ExitUpstream   = 8
	ExitInternal   = 10
	ExitDeployment = 11
	ExitRuntime    = 12
)

// CLIErrorAdapter turns errors into exit codes and one-line messages.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor determines the exit code for an error. Job failure kinds win
// over categories so a failed run reports what went wrong, not where.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	c, ok := AsClassified(err)
	if !ok {
		return ExitGeneral
	}
	switch c.Kind() {
	case KindRepoAuth:
		return ExitAuth
	case KindDeploymentFailed, KindDeploymentTimedOut:
		return ExitDeployment
	case KindGenerationFailed, KindGenerationRejected, KindRepoNameConflict,
		KindRepoRateLimited, KindRepoNotFound, KindNotifyFailed:
		return ExitUpstream
	}
	switch c.Category() {
	case CategoryValidation:
		return ExitUsage
	case CategoryConfig:
		return ExitConfig
	case CategoryAuth:
		return ExitAuth
	case CategoryNetwork, CategoryForge, CategoryGit, CategoryGeneration, CategoryNotify:
		return ExitUpstream
	case CategoryDeployment:
		return ExitDeployment
	case CategoryQueue, CategoryStore, CategoryRuntime:
		return ExitRuntime
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError formats an error for display on stderr.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return c.Error()
	}
	if c.Category() == CategoryInternal && c.Kind() == "" {
		return "Internal error occurred (use -v for details)"
	}
	if c.Kind() != "" && c.Kind() != KindValidation {
		return fmt.Sprintf("Error [%s]: %s", c.Kind(), c.Message())
	}
	return fmt.Sprintf("Error: %s", c.Message())
}

// HandleError prints err, logs fatal or unclassified errors, and exits
// with the mapped code. A nil error is a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if c, ok := AsClassified(err); ok {
		return c.Severity() == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	c, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
		return
	}
	attrs := []slog.Attr{slog.String("category", string(c.Category()))}
	if c.Kind() != "" {
		attrs = append(attrs, slog.String("kind", string(c.Kind())))
	}
	if c.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	level := slog.LevelError
	if c.Severity() == SeverityWarning {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, c.Message(), attrs...)
}
