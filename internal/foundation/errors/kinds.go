package errors

// Kind is the pipeline failure taxonomy. It is what evaluators see in a
// failure notification, so values are stable wire strings.
type Kind string

const (
	KindUnknown            Kind = ""
	KindValidation         Kind = "ValidationError"
	KindGenerationFailed   Kind = "GenerationFailed"
	KindGenerationRejected Kind = "GenerationRejected"
	KindRepoAuth           Kind = "RepoAuthError"
	KindRepoNameConflict   Kind = "RepoNameConflict"
	KindRepoRateLimited    Kind = "RepoRateLimited"
	KindRepoNotFound       Kind = "RepoNotFound"
	KindDeploymentFailed   Kind = "DeploymentFailed"
	KindDeploymentTimedOut Kind = "DeploymentTimedOut"
	KindNotifyFailed       Kind = "NotifyFailed"
	KindInternal           Kind = "InternalError"
)

// KindOf returns the first non-empty Kind found in the error chain.
// Unclassified errors map to KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for e := err; e != nil; {
		if c, ok := e.(*ClassifiedError); ok && c.kind != KindUnknown {
			return c.kind
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return KindInternal
}

// GenerationFailed reports an unusable model response or transport failure.
func GenerationFailed(reason string) *ErrorBuilder {
	return NewError(CategoryGeneration, reason).WithKind(KindGenerationFailed)
}

// GenerationRejected reports a content-policy refusal. Never retried.
func GenerationRejected(reason string) *ErrorBuilder {
	return NewError(CategoryGeneration, reason).WithKind(KindGenerationRejected).Fatal()
}

// RepoAuth reports a forge authorization failure. Never retried.
func RepoAuth(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).WithKind(KindRepoAuth).Fatal().UserAction()
}

// RepoNameConflict reports a repository name owned by an unrelated job.
func RepoNameConflict(name string) *ErrorBuilder {
	return NewError(CategoryAlreadyExists, "repository name belongs to another task").
		WithKind(KindRepoNameConflict).
		Fatal().
		WithContext("repository", name)
}

// RepoRateLimited reports forge throttling. Retried with backoff.
func RepoRateLimited(message string) *ErrorBuilder {
	return NewError(CategoryForge, message).WithKind(KindRepoRateLimited).Warning().RateLimit()
}

// RepoNotFound reports a missing repository.
func RepoNotFound(name string) *ErrorBuilder {
	return NewError(CategoryNotFound, "repository not found").
		WithKind(KindRepoNotFound).
		WithContext("repository", name)
}

// DeploymentFailed reports a hosting build failure.
func DeploymentFailed(reason string) *ErrorBuilder {
	return NewError(CategoryDeployment, reason).WithKind(KindDeploymentFailed)
}

// DeploymentTimedOut reports that the polling window elapsed.
func DeploymentTimedOut(message string) *ErrorBuilder {
	return NewError(CategoryDeployment, message).WithKind(KindDeploymentTimedOut)
}

// NotifyFailed reports an evaluator callback failure.
func NotifyFailed(message string) *ErrorBuilder {
	return NewError(CategoryNotify, message).WithKind(KindNotifyFailed).Retryable()
}
