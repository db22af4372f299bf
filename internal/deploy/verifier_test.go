package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// scriptedSource returns builds from a script, repeating the last entry.
type scriptedSource struct {
	mu     sync.Mutex
	builds []forge.PagesBuild
	errs   []error
	calls  int
}

func (s *scriptedSource) LatestPagesBuild(context.Context, string, string) (forge.PagesBuild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i >= len(s.builds) {
		i = len(s.builds) - 1
	}
	return s.builds[i], err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

var (
	endpoint = forge.HostingEndpoint{Owner: "acme", Repo: "site", URL: "https://acme.github.io/site/"}
	ref      = forge.CommitRef{SHA: "c0ffee", Branch: "main"}
)

func newVerifier(src BuildSource, opts ...Option) *PagesVerifier {
	return NewPagesVerifier(src, config.DeployConfig{PollInterval: "1ms", RequestTimeout: "1s"}, append([]Option{WithSleep(noSleep)}, opts...)...)
}

func TestAwaitLiveRequiresExactCommit(t *testing.T) {
	src := &scriptedSource{builds: []forge.PagesBuild{
		{Status: "built", Commit: "older"},
		{Status: "building", Commit: ref.SHA},
		{Status: "built", Commit: ref.SHA},
	}}

	out := newVerifier(src).AwaitLive(context.Background(), endpoint, ref, time.Minute)
	assert.Equal(t, Outcome{Status: StatusLive, URL: endpoint.URL}, out)
	assert.Equal(t, 3, src.calls)
	assert.NoError(t, out.Err())
}

func TestAwaitLiveBuildErrored(t *testing.T) {
	src := &scriptedSource{builds: []forge.PagesBuild{{Status: "errored", Commit: ref.SHA, Error: "Page build failed."}}}

	out := newVerifier(src).AwaitLive(context.Background(), endpoint, ref, time.Minute)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "Page build failed.", out.Reason)
	assert.Equal(t, errors.KindDeploymentFailed, errors.KindOf(out.Err()))
}

func TestAwaitLiveTimesOutWhenNeverLive(t *testing.T) {
	src := &scriptedSource{builds: []forge.PagesBuild{{Status: "built", Commit: "someone-else"}}}
	v := NewPagesVerifier(src, config.DeployConfig{PollInterval: "1ms"})

	out := v.AwaitLive(context.Background(), endpoint, ref, 20*time.Millisecond)
	assert.Equal(t, StatusTimedOut, out.Status)
	assert.Equal(t, errors.KindDeploymentTimedOut, errors.KindOf(out.Err()))
}

func TestAwaitLiveTransientErrorsKeepPolling(t *testing.T) {
	src := &scriptedSource{
		builds: []forge.PagesBuild{{}, {Status: "built", Commit: ref.SHA}},
		errs:   []error{errors.ForgeError("bad gateway").Build()},
	}
	out := newVerifier(src).AwaitLive(context.Background(), endpoint, ref, time.Minute)
	assert.Equal(t, StatusLive, out.Status)
}

func TestAwaitLiveFatalSourceError(t *testing.T) {
	src := &scriptedSource{
		builds: []forge.PagesBuild{{}},
		errs:   []error{errors.RepoAuth("bad credentials").Build()},
	}
	out := newVerifier(src).AwaitLive(context.Background(), endpoint, ref, time.Minute)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, src.calls)
}

func TestAwaitLiveProbesURL(t *testing.T) {
	var hits atomic.Int32
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer site.Close()

	src := &scriptedSource{builds: []forge.PagesBuild{{Status: "built", Commit: ref.SHA}}}
	v := NewPagesVerifier(src, config.DeployConfig{PollInterval: "1ms", ProbeURL: true},
		WithSleep(noSleep), WithHTTPClient(site.Client()))

	ep := endpoint
	ep.URL = site.URL
	out := v.AwaitLive(context.Background(), ep, ref, time.Minute)
	require.Equal(t, StatusLive, out.Status)
	assert.Equal(t, int32(2), hits.Load())
}
