package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/pagesmith/internal/daemon"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/job"
	"git.home.luguber.info/inful/pagesmith/internal/orchestrator"
)

// RunCmd implements the 'run' command: one job, no HTTP intake.
type RunCmd struct {
	File string `short:"f" help:"Job request JSON file ('-' for stdin)" required:""`
}

// runResult is printed to stdout on completion.
type runResult struct {
	RunID     string   `json:"run_id"`
	Status    string   `json:"status"`
	Duplicate bool     `json:"duplicate"`
	Notified  bool     `json:"notified"`
	Trace     []string `json:"trace"`
	RepoURL   string   `json:"repo_url,omitempty"`
	CommitSHA string   `json:"commit_sha,omitempty"`
	PagesURL  string   `json:"pages_url,omitempty"`
	Failure   string   `json:"failure,omitempty"`
}

func (c *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	req, err := readRequest(c.File)
	if err != nil {
		return err
	}
	j, err := job.FromRequest(req)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if timeout := cfg.Queue.JobTimeoutDuration(); timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, timeout)
		defer tcancel()
	}

	orch, store, err := daemon.BuildPipeline(ctx, cfg, daemon.Components{}, nil, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out, err := orch.Execute(ctx, j)
	if err != nil {
		return err
	}
	if perr := printResult(os.Stdout, out); perr != nil {
		return perr
	}
	return out.Err()
}

func readRequest(path string) (job.Request, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return job.Request{}, errors.ValidationError("cannot open job file").WithCause(err).WithContext("path", path).Build()
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var req job.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return job.Request{}, errors.ValidationError("job file is not valid JSON").WithCause(err).WithContext("path", path).Build()
	}
	return req, nil
}

func printResult(w io.Writer, out orchestrator.Outcome) error {
	res := runResult{
		RunID:     out.RunID,
		Status:    string(out.Status),
		Duplicate: out.Duplicate,
		Notified:  out.Notified,
	}
	for _, s := range out.Trace {
		res.Trace = append(res.Trace, string(s))
	}
	r := out.Result
	res.RepoURL, res.CommitSHA, res.PagesURL = r.RepoURL, r.CommitSHA, r.PagesURL
	if r.FailureKind != "" {
		res.Failure = fmt.Sprintf("%s: %s", r.FailureKind, r.FailureReason)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
