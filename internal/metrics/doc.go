// Package metrics provides pipeline observability for pagesmith.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	type Orchestrator struct {
//	    recorder metrics.Recorder
//	}
//
// When monitoring.metrics.enabled is set the daemon swaps in a
// PrometheusRecorder registered on a registry that HTTPHandler serves.
//
//	reg := metrics.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
