package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newNotifier(srv *httptest.Server, attempts int) *HTTPNotifier {
	return NewHTTPNotifier(config.NotifyConfig{MaxAttempts: attempts, Timeout: "1s", InitialDelay: "1ms", MaxDelay: "2ms"},
		WithHTTPClient(srv.Client()), WithSleep(noSleep))
}

func TestNotifySendsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := Payload{
		Email: "a@example.com", Task: "calc", Round: 1, Nonce: "n1",
		RepoURL: "https://github.com/acme/calc", CommitSHA: "abc", PagesURL: "https://acme.github.io/calc/",
		Status: StatusSucceeded,
	}
	require.NoError(t, newNotifier(srv, 5).Notify(context.Background(), srv.URL, p))
	assert.Equal(t, p, got)
}

func TestNotifyRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newNotifier(srv, 5).Notify(context.Background(), srv.URL, Payload{Status: StatusFailed}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newNotifier(srv, 4).Notify(context.Background(), srv.URL, Payload{})
	require.Error(t, err)
	assert.Equal(t, errors.KindNotifyFailed, errors.KindOf(err))
	assert.Equal(t, int32(4), calls.Load())
}

func TestNotifyClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newNotifier(srv, 5).Notify(context.Background(), srv.URL, Payload{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotifyDefaults(t *testing.T) {
	n := NewHTTPNotifier(config.NotifyConfig{})
	assert.Equal(t, 4, n.policy.MaxRetries)
	assert.Equal(t, 15*time.Second, n.timeout)
}
