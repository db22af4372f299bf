package git

import (
	stderrors "errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors carrying
// the repository failure kinds.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	var builder *errors.ErrorBuilder
	l := strings.ToLower(err.Error())
	switch {
	case stderrors.Is(err, transport.ErrAuthenticationRequired),
		stderrors.Is(err, transport.ErrAuthorizationFailed),
		strings.Contains(l, "authentication failed"),
		strings.Contains(l, "invalid credentials"):
		builder = errors.RepoAuth("git authentication failed")
	case stderrors.Is(err, transport.ErrRepositoryNotFound),
		strings.Contains(l, "repository not found"):
		builder = errors.RepoNotFound(url)
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		builder = errors.RepoRateLimited("git remote rate limited")
	case strings.Contains(l, "non-fast-forward"):
		// The branch moved; a fresh clone on the next attempt resolves it.
		builder = errors.GitError("remote branch moved during push").Retryable().WithContext("diverged", true)
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		builder = errors.NetworkError("git transport failure")
	default:
		builder = errors.GitError("git operation failed")
	}
	return builder.
		WithCause(err).
		WithContext("op", op).
		WithContext("url", url).
		Build()
}
