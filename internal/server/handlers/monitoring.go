package handlers

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/pagesmith/internal/version"
)

// QueueLength reports the number of waiting jobs.
type QueueLength interface {
	Length() int
}

// MonitoringHandlers serves health checks.
type MonitoringHandlers struct {
	queue     QueueLength
	startTime time.Time
}

// NewMonitoringHandlers creates monitoring handlers.
func NewMonitoringHandlers(queue QueueLength, startTime time.Time) *MonitoringHandlers {
	return &MonitoringHandlers{queue: queue, startTime: startTime}
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Uptime      float64 `json:"uptime_seconds"`
	QueueLength int     `json:"queue_length"`
}

// HandleHealthCheck reports liveness.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: version.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}
	if h.queue != nil {
		resp.QueueLength = h.queue.Length()
	}
	_ = writeJSON(w, http.StatusOK, resp)
}
