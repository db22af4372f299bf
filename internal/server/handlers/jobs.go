package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
	"git.home.luguber.info/inful/pagesmith/internal/queue"
)

// MaxRequestBytes bounds a job request body, attachments included.
const MaxRequestBytes = 32 << 20

// Submitter accepts validated jobs.
type Submitter interface {
	Submit(ctx context.Context, j job.Job) (orchestrator.Ack, error)
}

// ActiveLister reports queued and running jobs.
type ActiveLister interface {
	Active() []queue.TaskInfo
}

// JobHandlers serves job intake and inspection.
type JobHandlers struct {
	submitter    Submitter
	active       ActiveLister
	secret       string
	errorAdapter *errors.HTTPErrorAdapter
}

// NewJobHandlers creates job handlers. An empty secret disables the check.
func NewJobHandlers(submitter Submitter, active ActiveLister, secret string, logger *slog.Logger) *JobHandlers {
	return &JobHandlers{
		submitter:    submitter,
		active:       active,
		secret:       secret,
		errorAdapter: errors.NewHTTPErrorAdapter(logger),
	}
}

// HandleSubmit decodes, authenticates and validates a job request, then
// acknowledges it. The pipeline runs detached.
func (h *JobHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.errorAdapter.WriteErrorResponse(w, r, methodNotAllowed(r.Method, http.MethodPost))
		return
	}

	var req job.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("request body is not valid JSON").
			WithCause(err).
			Build())
		return
	}

	if h.secret != "" && subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		h.errorAdapter.WriteErrorResponse(w, r, errors.AuthError("invalid secret").Build())
		return
	}

	j, err := job.FromRequest(req)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	ack, err := h.submitter.Submit(r.Context(), j)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, ack); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryInternal, "failed to write acknowledgement").Build())
	}
}

// HandleActive lists queued and running jobs.
func (h *JobHandlers) HandleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorAdapter.WriteErrorResponse(w, r, methodNotAllowed(r.Method, http.MethodGet))
		return
	}
	jobs := h.active.Active()
	_ = writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}
