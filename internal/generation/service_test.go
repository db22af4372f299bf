package generation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
)

type scriptedProvider struct {
	replies []reply
	prompts []Prompt
}

type reply struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, prompt Prompt) (string, error) {
	p.prompts = append(p.prompts, prompt)
	r := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return r.text, r.err
}

func newTestService(p Provider) *Service {
	return NewService(p, Options{
		LicenseHolder: "octo",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:           func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) },
		Sleep:         func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
}

func createRequest() Request {
	return Request{Task: "calculator", Round: 1, Mode: job.ModeCreate, Brief: "Build a calculator", Checks: []string{"has buttons"}}
}

func TestGenerateCreateAddsDefaults(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: `{"files":[{"name":"index.html","content":"<html></html>"}]}`}}}
	fs, err := newTestService(p).Generate(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"LICENSE", "README.md", "index.html"}, fs.Paths())
	lic, _ := fs.Get("LICENSE")
	assert.Contains(t, string(lic), "Copyright (c) 2026 octo")
	readme, _ := fs.Get("README.md")
	assert.Contains(t, string(readme), "# calculator")
	assert.Contains(t, string(readme), "- has buttons")
}

func TestGenerateKeepsModelLicense(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: "```json\n" + `[{"name":"index.html","content":"x"},{"name":"LICENSE","content":"custom"}]` + "\n```"}}}
	fs, err := newTestService(p).Generate(context.Background(), createRequest())
	require.NoError(t, err)
	lic, _ := fs.Get("LICENSE")
	assert.Equal(t, "custom", string(lic))
}

func TestGenerateEmptyFileSetFails(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: `{"files":[]}`}}}
	_, err := newTestService(p).Generate(context.Background(), createRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
}

func TestGenerateRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.html", "/etc/passwd", "a/../../b"} {
		p := &scriptedProvider{replies: []reply{{text: `[{"name":"index.html","content":"x"},{"name":"` + name + `","content":"x"}]`}}}
		_, err := newTestService(p).Generate(context.Background(), createRequest())
		require.Error(t, err, name)
		assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err), name)
	}
}

func TestGenerateRejectsFileDirectoryClash(t *testing.T) {
	replies := []string{
		`[{"name":"index.html","content":"x"},{"name":".","content":"x"}]`,
		`[{"name":"index.html","content":"x"},{"name":"js","content":"x"},{"name":"js/app.js","content":"x"}]`,
		`[{"name":"index.html","content":"x"},{"name":"README.md/notes.txt","content":"x"}]`,
	}
	for _, text := range replies {
		p := &scriptedProvider{replies: []reply{{text: text}}}
		_, err := newTestService(p).Generate(context.Background(), createRequest())
		require.Error(t, err, text)
		assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err), text)
	}
}

func TestGenerateRequiresEntryPoint(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{text: `[{"name":"app.js","content":"x"}]`}}}
	_, err := newTestService(p).Generate(context.Background(), createRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
}

func TestGenerateRetriesTransientOnce(t *testing.T) {
	transient := errors.GenerationFailed("503").Retryable().Build()
	p := &scriptedProvider{replies: []reply{{err: transient}, {err: transient}, {text: `[{"name":"index.html","content":"x"}]`}}}
	_, err := newTestService(p).Generate(context.Background(), createRequest())
	require.Error(t, err, "only a single retry is allowed")
	assert.Len(t, p.prompts, 2)

	p = &scriptedProvider{replies: []reply{{err: transient}, {text: `[{"name":"index.html","content":"x"}]`}}}
	_, err = newTestService(p).Generate(context.Background(), createRequest())
	require.NoError(t, err)
	assert.Len(t, p.prompts, 2)
}

func TestGenerateDoesNotRetryRejection(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: errors.GenerationRejected("SAFETY").Build()}}}
	_, err := newTestService(p).Generate(context.Background(), createRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindGenerationRejected, errors.KindOf(err))
	assert.Len(t, p.prompts, 1)
}

func TestGenerateReviseResolvesKeep(t *testing.T) {
	existing, err := fileset.FromMap(map[string][]byte{
		"index.html": []byte("<p>old</p>"),
		"logo.png":   {0x89, 'P', 'N', 'G', 0x00},
		"LICENSE":    []byte("MIT"),
	})
	require.NoError(t, err)

	p := &scriptedProvider{replies: []reply{{text: `{"files":[{"name":"index.html","content":"<p>new</p>"},{"name":"logo.png","keep":true}]}`}}}
	req := Request{Task: "calculator", Round: 2, Mode: job.ModeRevise, Brief: "Add dark mode", Existing: &existing}
	fs, err := newTestService(p).Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"LICENSE", "index.html", "logo.png"}, fs.Paths())
	logo, _ := fs.Get("logo.png")
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', 0x00}, logo)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0].User, "<p>old</p>", "text files are inlined")
	assert.Contains(t, p.prompts[0].User, "logo.png (5 bytes)", "binary files are listed")
	assert.NotContains(t, p.prompts[0].User, "Create the application from scratch")
}

func TestGenerateKeepOfUnknownFileFails(t *testing.T) {
	existing, err := fileset.FromMap(map[string][]byte{"index.html": []byte("x")})
	require.NoError(t, err)
	p := &scriptedProvider{replies: []reply{{text: `[{"name":"index.html","keep":true},{"name":"ghost.css","keep":true}]`}}}
	req := Request{Task: "t", Round: 2, Mode: job.ModeRevise, Brief: "b", Existing: &existing}
	_, err = newTestService(p).Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
}

func TestGenerateWrapsUnclassifiedProviderErrors(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: io.ErrUnexpectedEOF}}}
	_, err := newTestService(p).Generate(context.Background(), createRequest())
	require.Error(t, err)
	assert.Equal(t, errors.KindGenerationFailed, errors.KindOf(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
