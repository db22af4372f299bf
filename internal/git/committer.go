package git

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

const remoteName = "origin"

// Committer implements forge.Committer over the git smart protocol.
type Committer struct {
	auth   transport.AuthMethod
	author string
	email  string
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Committer.
type Option func(*Committer)

// WithAuthor sets the commit author.
func WithAuthor(name, email string) Option {
	return func(c *Committer) { c.author, c.email = name, email }
}

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

// NewCommitter returns a Committer that authenticates with a token over
// HTTPS. An empty token disables authentication.
func NewCommitter(token string, opts ...Option) *Committer {
	c := &Committer{
		author: "pagesmith",
		email:  "pagesmith@users.noreply.github.com",
		now:    time.Now,
		logger: slog.Default(),
	}
	if token != "" {
		c.auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ forge.Committer = (*Committer)(nil)

// Commit implements forge.Committer. When the FileSet equals the branch
// content the current head is returned and nothing is pushed.
func (c *Committer) Commit(ctx context.Context, repo forge.Repo, files fileset.FileSet, message string) (forge.CommitRef, error) {
	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	refName := plumbing.NewBranchReferenceName(branch)
	out := forge.CommitRef{Branch: branch}

	fs := memfs.New()
	repository, err := c.open(ctx, repo.CloneURL, refName, fs)
	if err != nil {
		return out, err
	}
	wt, err := repository.Worktree()
	if err != nil {
		return out, ClassifyGitError(err, "worktree", repo.CloneURL)
	}

	if err := replaceWorktree(fs, files); err != nil {
		return out, ClassifyGitError(err, "write", repo.CloneURL)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return out, ClassifyGitError(err, "add", repo.CloneURL)
	}

	status, err := wt.Status()
	if err != nil {
		return out, ClassifyGitError(err, "status", repo.CloneURL)
	}
	if status.IsClean() {
		if head, herr := repository.Head(); herr == nil {
			c.logger.Debug("Worktree unchanged, skipping push", logfields.Repository(repo.FullName()))
			out.SHA = head.Hash().String()
			return out, nil
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            &object.Signature{Name: c.author, Email: c.email, When: c.now()},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return out, ClassifyGitError(err, "commit", repo.CloneURL)
	}

	spec := ggitcfg.RefSpec(refName.String() + ":" + refName.String())
	err = repository.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Auth:       c.auth,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return out, ClassifyGitError(err, "push", repo.CloneURL)
	}
	out.SHA = hash.String()
	c.logger.Info("Pushed commit",
		logfields.Repository(repo.FullName()),
		logfields.Commit(out.SHA),
		logfields.Files(files.Len()))
	return out, nil
}

// open clones the branch into memory, or initializes an empty repository
// pointing at the remote when it has no commits yet.
func (c *Committer) open(ctx context.Context, url string, ref plumbing.ReferenceName, fs billy.Filesystem) (*git.Repository, error) {
	storer := memory.NewStorage()
	repository, err := git.CloneContext(ctx, storer, fs, &git.CloneOptions{
		URL:           url,
		Auth:          c.auth,
		RemoteName:    remoteName,
		ReferenceName: ref,
		SingleBranch:  true,
	})
	if err == nil {
		return repository, nil
	}
	if !stderrors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil, ClassifyGitError(err, "clone", url)
	}

	storer = memory.NewStorage()
	repository, err = git.Init(storer, fs)
	if err != nil {
		return nil, ClassifyGitError(err, "init", url)
	}
	if _, err := repository.CreateRemote(&ggitcfg.RemoteConfig{Name: remoteName, URLs: []string{url}}); err != nil {
		return nil, ClassifyGitError(err, "remote", url)
	}
	if err := storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return nil, ClassifyGitError(err, "init", url)
	}
	return repository, nil
}

// replaceWorktree removes every worktree entry and writes files.
func replaceWorktree(fs billy.Filesystem, files fileset.FileSet) error {
	entries, err := fs.ReadDir("/")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if err := util.RemoveAll(fs, e.Name()); err != nil {
			return err
		}
	}
	for _, f := range files.Files() {
		if err := util.WriteFile(fs, f.Path, f.Content, 0o644); err != nil {
			return err
		}
	}
	return nil
}
