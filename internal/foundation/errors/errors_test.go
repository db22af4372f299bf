package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "pagesmith.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "pagesmith.yaml", file)
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		assert.True(t, IsClassified(err))
		assert.True(t, HasCategory(err, CategoryConfig))
		assert.True(t, HasSeverity(err, SeverityFatal))
		assert.False(t, err.CanRetry())
		assert.True(t, err.IsFatal())
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := ForgeError("boom").Build()
		derived := base.WithContext("k", "v")

		_, ok := base.Context().Get("k")
		assert.False(t, ok)
		v, ok := derived.Context().GetString("k")
		require.True(t, ok)
		assert.Equal(t, "v", v)
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := stdErrors.New("original error")
	err := WrapError(originalErr, CategoryNetwork, "network failure").
		Warning().
		Retryable().
		WithContext("url", "https://api.github.com").
		Build()

	assert.Equal(t, SeverityWarning, err.Severity())
	assert.Equal(t, RetryBackoff, err.RetryStrategy())
	assert.True(t, err.CanRetry())
	assert.True(t, err.IsTransient())
	assert.ErrorIs(t, err, originalErr)
	assert.Contains(t, err.Error(), "original error")
}

func TestAsClassifiedThroughWrapping(t *testing.T) {
	inner := RepoRateLimited("slow down").Build()
	wrapped := fmt.Errorf("commit: %w", inner)

	c, ok := AsClassified(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindRepoRateLimited, c.Kind())
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, RetryRateLimit, GetRetryStrategy(wrapped))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", stdErrors.New("x"), KindInternal},
		{"generation failed", GenerationFailed("empty file set").Build(), KindGenerationFailed},
		{"rejected", GenerationRejected("blocked").Build(), KindGenerationRejected},
		{"auth", RepoAuth("bad token").Build(), KindRepoAuth},
		{"conflict", RepoNameConflict("calc").Build(), KindRepoNameConflict},
		{"timeout", DeploymentTimedOut("never live").Build(), KindDeploymentTimedOut},
		{
			"kind found below an untagged classified wrapper",
			WrapError(DeploymentFailed("errored").Build(), CategoryInternal, "pipeline").Build(),
			KindDeploymentFailed,
		},
		{"wrapped by fmt", fmt.Errorf("outer: %w", NotifyFailed("500").Build()), KindNotifyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFatalKindsAreNotRetryable(t *testing.T) {
	for _, err := range []*ClassifiedError{
		RepoAuth("denied").Build(),
		RepoNameConflict("x").Build(),
		GenerationRejected("policy").Build(),
	} {
		assert.False(t, err.CanRetry(), err.Error())
	}
}

func TestCLIErrorAdapterExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	assert.Equal(t, 0, a.ExitCodeFor(nil))
	assert.Equal(t, 1, a.ExitCodeFor(stdErrors.New("plain")))
	assert.Equal(t, 7, a.ExitCodeFor(ConfigError("missing").Build()))
	assert.Equal(t, 5, a.ExitCodeFor(RepoAuth("denied").Build()))
	assert.Equal(t, 11, a.ExitCodeFor(DeploymentTimedOut("late").Build()))
	assert.Equal(t, "Error: missing", a.FormatError(ConfigError("missing").Build()))
}

func TestCLIErrorAdapterHandleError(t *testing.T) {
	var out bytes.Buffer
	var code int
	a := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.out = &out
	a.exit = func(c int) { code = c }

	a.HandleError(NewError(CategoryRuntime, "deploy never went live").WithKind(KindDeploymentTimedOut).Build())

	assert.Equal(t, ExitDeployment, code)
	assert.Equal(t, "Error [DeploymentTimedOut]: deploy never went live\n", out.String())

	code = -1
	a.HandleError(nil)
	assert.Equal(t, -1, code)
}
