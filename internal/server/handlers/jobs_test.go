package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
	"git.home.luguber.info/inful/pagesmith/internal/queue"
)

type fakeSubmitter struct {
	got []job.Job
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, j job.Job) (orchestrator.Ack, error) {
	f.got = append(f.got, j)
	if f.err != nil {
		return orchestrator.Ack{}, f.err
	}
	return orchestrator.Ack{Status: orchestrator.AckAccepted, Task: j.Task, Round: j.Round, RunID: "run-1"}, nil
}

type fakeActive []queue.TaskInfo

func (f fakeActive) Active() []queue.TaskInfo { return f }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func validRequest() job.Request {
	return job.Request{
		Email:         "student@example.com",
		Secret:        "s3cret",
		Task:          "calculator-app",
		Round:         1,
		Nonce:         "n-1",
		Brief:         "Build a calculator",
		Checks:        []string{"has index.html"},
		EvaluationURL: "https://eval.example.com/notify",
	}
}

func post(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandleSubmit_Accepted(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewJobHandlers(sub, fakeActive(nil), "s3cret", discard())

	rec := post(t, h.HandleSubmit, validRequest())

	require.Equal(t, http.StatusOK, rec.Code)
	var ack orchestrator.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, orchestrator.AckAccepted, ack.Status)
	assert.Equal(t, "calculator-app", ack.Task)
	require.Len(t, sub.got, 1)
	assert.Equal(t, "n-1", sub.got[0].Nonce)
}

func TestHandleSubmit_WrongSecret(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewJobHandlers(sub, fakeActive(nil), "s3cret", discard())
	req := validRequest()
	req.Secret = "nope"

	rec := post(t, h.HandleSubmit, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, sub.got)
}

func TestHandleSubmit_NoSecretConfigured(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewJobHandlers(sub, fakeActive(nil), "", discard())
	req := validRequest()
	req.Secret = ""

	rec := post(t, h.HandleSubmit, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSubmit_Invalid(t *testing.T) {
	sub := &fakeSubmitter{}
	h := NewJobHandlers(sub, fakeActive(nil), "s3cret", discard())
	req := validRequest()
	req.Round = 0
	req.Email = "not an email"

	rec := post(t, h.HandleSubmit, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Code)
	assert.Len(t, body.Details["problems"], 2)
	assert.Empty(t, sub.got)
}

func TestHandleSubmit_MalformedJSON(t *testing.T) {
	h := NewJobHandlers(&fakeSubmitter{}, fakeActive(nil), "", discard())
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()

	h.HandleSubmit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_QueueFull(t *testing.T) {
	sub := &fakeSubmitter{err: errors.QueueError("queue is full").Build()}
	h := NewJobHandlers(sub, fakeActive(nil), "", discard())

	rec := post(t, h.HandleSubmit, validRequest())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSubmit_MethodNotAllowed(t *testing.T) {
	h := NewJobHandlers(&fakeSubmitter{}, fakeActive(nil), "", discard())
	rec := httptest.NewRecorder()

	h.HandleSubmit(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleActive(t *testing.T) {
	active := fakeActive{{ID: "a", Task: "calculator-app", Round: 1, Status: queue.StatusRunning, CreatedAt: time.Unix(0, 0)}}
	h := NewJobHandlers(&fakeSubmitter{}, active, "", discard())
	rec := httptest.NewRecorder()

	h.HandleActive(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/active", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs  []queue.TaskInfo `json:"jobs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "calculator-app", body.Jobs[0].Task)
}
