// Package forge provisions repositories on the code host: create-if-absent,
// snapshot reads, atomic full-tree commits and static hosting enablement.
package forge

import (
	"context"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
)

// OwnershipMarkerPrefix tags repositories created by pagesmith. The repository
// description is the prefix followed by the raw task name; a repository with
// any other description is treated as owned by someone else.
const OwnershipMarkerPrefix = "pagesmith:"

// Repo is the handle returned by EnsureRepository.
type Repo struct {
	Owner         string
	Name          string
	HTMLURL       string
	CloneURL      string
	DefaultBranch string
	Description   string
}

// FullName returns owner/name.
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

// CommitRef identifies the commit that holds a FileSet.
type CommitRef struct {
	SHA    string
	Branch string
}

// HostingEndpoint is where the static site is published.
type HostingEndpoint struct {
	Owner string
	Repo  string
	URL   string
}

// Provisioner is the repository host contract used by the orchestrator.
type Provisioner interface {
	// EnsureRepository creates the repository when absent and returns the
	// existing one otherwise. An existing repository whose ownership marker
	// does not match task fails with RepoNameConflict.
	EnsureRepository(ctx context.Context, name, task string) (Repo, error)
	// FetchFileSet returns every tracked file on the default branch. A
	// repository without commits yields an empty set; a missing repository
	// fails with RepoNotFound and one whose ownership marker does not match
	// task fails with RepoNameConflict.
	FetchFileSet(ctx context.Context, name, task string) (fileset.FileSet, error)
	// CommitFileSet makes files the complete tracked state in one commit.
	CommitFileSet(ctx context.Context, repo Repo, files fileset.FileSet, message string) (CommitRef, error)
	// EnableStaticHosting turns on publishing from the default branch root.
	EnableStaticHosting(ctx context.Context, repo Repo) (HostingEndpoint, error)
}

// Committer writes a FileSet as a single commit. The GitHub provisioner
// uses the Git Data API by default and a go-git push when configured.
type Committer interface {
	Commit(ctx context.Context, repo Repo, files fileset.FileSet, message string) (CommitRef, error)
}

func ownershipMarker(task string) string {
	return OwnershipMarkerPrefix + task
}
