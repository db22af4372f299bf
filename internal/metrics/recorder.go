package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultRetry    ResultLabel = "retry"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for pipeline metrics. Implementations
// may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveJobDuration(d time.Duration)
	IncJobOutcome(status, kind string) // status: success|failure; kind empty on success
	IncSubmission(status string)       // accepted|duplicate|rejected
	IncRetry(stage string)
	IncNotifyAttempt(success bool)
	SetQueueDepth(n int)
	SetActiveJobs(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveJobDuration(time.Duration)           {}
func (NoopRecorder) IncJobOutcome(string, string)               {}
func (NoopRecorder) IncSubmission(string)                       {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) IncNotifyAttempt(bool)                      {}
func (NoopRecorder) SetQueueDepth(int)                          {}
func (NoopRecorder) SetActiveJobs(int)                          {}
