package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagesmith"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	jobDuration    prom.Histogram
	jobOutcomes    *prom.CounterVec
	submissions    *prom.CounterVec
	retries        *prom.CounterVec
	notifyAttempts *prom.CounterVec
	queueDepth     prom.Gauge
	activeJobs     prom.Gauge
}

// NewPrometheusRecorder constructs and registers pipeline metrics on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	// Stage latencies range from sub-second commits to multi-minute deploy waits.
	buckets := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   buckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		jobDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "End-to-end job duration",
			Buckets:   buckets,
		}),
		jobOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Terminal job outcomes by status and failure kind",
		}, []string{"status", "kind"}),
		submissions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Inbound job submissions by acknowledgement status",
		}, []string{"status"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries of transient failures by stage",
		}, []string{"stage"}),
		notifyAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notify_attempts_total",
			Help:      "Evaluator callback attempts by result",
		}, []string{"result"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker",
		}),
		activeJobs: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs currently executing",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.jobDuration, pr.jobOutcomes,
		pr.submissions, pr.retries, pr.notifyAttempts, pr.queueDepth, pr.activeJobs)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveJobDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.jobDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(status, kind string) {
	if p == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(status, kind).Inc()
}

func (p *PrometheusRecorder) IncSubmission(status string) {
	if p == nil {
		return
	}
	p.submissions.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncRetry(stage string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncNotifyAttempt(success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.notifyAttempts.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) SetActiveJobs(n int) {
	if p == nil {
		return
	}
	p.activeJobs.Set(float64(n))
}
