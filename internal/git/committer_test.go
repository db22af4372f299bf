package git

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/forge"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

func newBareRemote(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(path, true)
	require.NoError(t, err)
	return path
}

func mustFileSet(t *testing.T, m map[string]string) fileset.FileSet {
	t.Helper()
	raw := make(map[string][]byte, len(m))
	for k, v := range m {
		raw[k] = []byte(v)
	}
	fs, err := fileset.FromMap(raw)
	require.NoError(t, err)
	return fs
}

// branchFiles reads the tree at refs/heads/main of the bare remote.
func branchFiles(t *testing.T, remote string) map[string]string {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)
	out := map[string]string{}
	require.NoError(t, tree.Files().ForEach(func(f *object.File) error {
		content, cerr := f.Contents()
		out[f.Name] = content
		return cerr
	}))
	return out
}

func commitCount(t *testing.T, remote string) int {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	require.NoError(t, err)
	n := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error { n++; return nil }))
	return n
}

func TestCommitterReplacesTreeAtomically(t *testing.T) {
	remote := newBareRemote(t)
	c := NewCommitter("", WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	repo := forge.Repo{Owner: "acme", Name: "site", CloneURL: remote, DefaultBranch: "main"}
	ctx := context.Background()

	first, err := c.Commit(ctx, repo, mustFileSet(t, map[string]string{
		"index.html":    "<h1>v1</h1>",
		"assets/app.js": "console.log(1)",
		"LICENSE":       "MIT",
	}), "round 1")
	require.NoError(t, err)
	assert.Equal(t, "main", first.Branch)
	assert.Len(t, first.SHA, 40)

	second, err := c.Commit(ctx, repo, mustFileSet(t, map[string]string{
		"index.html": "<h1>v2</h1>",
		"LICENSE":    "MIT",
	}), "round 2")
	require.NoError(t, err)
	assert.NotEqual(t, first.SHA, second.SHA)

	files := branchFiles(t, remote)
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"LICENSE", "index.html"}, keys, "absent paths are deleted")
	assert.Equal(t, "<h1>v2</h1>", files["index.html"])
	assert.Equal(t, 2, commitCount(t, remote))
}

func TestCommitterUnchangedFileSetIsNoop(t *testing.T) {
	remote := newBareRemote(t)
	c := NewCommitter("")
	repo := forge.Repo{Owner: "acme", Name: "site", CloneURL: remote, DefaultBranch: "main"}
	files := mustFileSet(t, map[string]string{"index.html": "same"})

	first, err := c.Commit(context.Background(), repo, files, "one")
	require.NoError(t, err)
	again, err := c.Commit(context.Background(), repo, files, "two")
	require.NoError(t, err)

	assert.Equal(t, first.SHA, again.SHA)
	assert.Equal(t, 1, commitCount(t, remote))
}

func TestCommitterMissingRemote(t *testing.T) {
	c := NewCommitter("")
	repo := forge.Repo{Owner: "acme", Name: "gone", CloneURL: filepath.Join(t.TempDir(), "missing.git"), DefaultBranch: "main"}

	_, err := c.Commit(context.Background(), repo, mustFileSet(t, map[string]string{"index.html": "x"}), "msg")
	require.Error(t, err)
	_, ok := errors.AsClassified(err)
	assert.True(t, ok)
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		msg  string
		kind errors.Kind
	}{
		{"authentication failed", errors.KindRepoAuth},
		{"repository not found", errors.KindRepoNotFound},
		{"API rate limit exceeded", errors.KindRepoRateLimited},
		{"something odd", errors.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := ClassifyGitError(errorString(tt.msg), "push", "u")
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}

	retryable := ClassifyGitError(errorString("failed to push: non-fast-forward update"), "push", "u")
	assert.True(t, errors.IsRetryable(retryable))
	assert.Nil(t, ClassifyGitError(nil, "push", "u"))
}

type errorString string

func (e errorString) Error() string { return string(e) }
