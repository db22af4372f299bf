package commands

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/idempotency"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
)

func parse(t *testing.T, args ...string) (*CLI, *Global, *kong.Context) {
	t.Helper()
	var cli CLI
	g := &Global{}
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Bind(g, &cli), kong.Exit(func(int) {}))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, g, kctx
}

func TestParse_RunCommand(t *testing.T) {
	cli, g, kctx := parse(t, "-c", "custom.yaml", "--verbose", "run", "--file", "job.json")

	assert.Equal(t, "run", kctx.Command())
	assert.Equal(t, "custom.yaml", cli.Config)
	assert.Equal(t, "job.json", cli.Run.File)
	require.NotNil(t, g.Logger)
	assert.True(t, g.Logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestLoadConfig_AppliesLogging(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GITHUB_TOKEN", "t")
	dir := t.TempDir()
	path := filepath.Join(dir, "pagesmith.yaml")
	require.NoError(t, config.Init(path, false))

	cli, g, _ := parse(t, "-c", path, "init")
	cfg, err := cli.loadConfig(g)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.False(t, g.Logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagesmith.yaml")

	require.NoError(t, RunInit(path, false))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.Error(t, RunInit(path, false))
	require.NoError(t, RunInit(path, true))
}

func TestReadRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"email":"a@b.co","task":"t","round":1,"nonce":"n","brief":"b","evaluation_url":"https://e.x/cb"}`), 0o600))

	req, err := readRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "t", req.Task)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = readRequest(path)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = readRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	out := orchestrator.Outcome{
		RunID:  "r1",
		Status: idempotency.StatusFailed,
		Result: idempotency.Result{FailureKind: "DeploymentTimedOut", FailureReason: "no build"},
		Trace:  []orchestrator.State{orchestrator.StateReceived, orchestrator.StateFailed},
	}

	require.NoError(t, printResult(&buf, out))

	var res runResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, "FAILED", res.Status)
	assert.Equal(t, "DeploymentTimedOut: no build", res.Failure)
	assert.Equal(t, []string{"RECEIVED", "FAILED"}, res.Trace)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, levelFor(config.LogLevelWarn))
	assert.Equal(t, slog.LevelInfo, levelFor(""))
}
