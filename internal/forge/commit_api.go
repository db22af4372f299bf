package forge

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
)

// apiCommitter writes a FileSet through the Git Data API: one blob per file,
// a tree without base_tree so absent paths are deleted, one commit, and a
// non-forced ref update. Nothing is visible on the branch until the final
// ref update succeeds.
type apiCommitter struct {
	api *apiClient
}

type gitObject struct {
	SHA string `json:"sha"`
}

type gitRef struct {
	Object gitObject `json:"object"`
}

type gitCommit struct {
	SHA  string    `json:"sha"`
	Tree gitObject `json:"tree"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

func (c *apiCommitter) Commit(ctx context.Context, repo Repo, files fileset.FileSet, message string) (CommitRef, error) {
	base := repoPath(repo.Owner, repo.Name) + "/git"
	branch := repo.DefaultBranch
	out := CommitRef{Branch: branch}

	var head gitRef
	if err := c.api.call(ctx, http.MethodGet, base+"/ref/heads/"+url.PathEscape(branch), nil, &head); err != nil {
		return out, err
	}
	var parent gitCommit
	if err := c.api.call(ctx, http.MethodGet, base+"/commits/"+head.Object.SHA, nil, &parent); err != nil {
		return out, err
	}

	entries := make([]treeEntry, 0, files.Len())
	for _, f := range files.Files() {
		var blob gitObject
		body := map[string]string{
			"content":  base64.StdEncoding.EncodeToString(f.Content),
			"encoding": "base64",
		}
		if err := c.api.call(ctx, http.MethodPost, base+"/blobs", body, &blob); err != nil {
			return out, err
		}
		entries = append(entries, treeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: blob.SHA})
	}

	var tree gitObject
	if err := c.api.call(ctx, http.MethodPost, base+"/trees", map[string]any{"tree": entries}, &tree); err != nil {
		return out, err
	}
	// Identical content: the branch already holds this FileSet.
	if tree.SHA == parent.Tree.SHA {
		out.SHA = parent.SHA
		return out, nil
	}

	var commit gitCommit
	body := map[string]any{"message": message, "tree": tree.SHA, "parents": []string{parent.SHA}}
	if err := c.api.call(ctx, http.MethodPost, base+"/commits", body, &commit); err != nil {
		return out, err
	}

	update := map[string]any{"sha": commit.SHA, "force": false}
	if err := c.api.call(ctx, http.MethodPatch, base+"/refs/heads/"+url.PathEscape(branch), update, nil); err != nil {
		// 422: the branch moved underneath us; a fresh attempt rebuilds on the new head.
		if statusOf(err) == http.StatusUnprocessableEntity {
			return out, errors.ForgeError("branch moved during commit").
				WithCause(err).
				WithContext("branch", branch).
				Build()
		}
		return out, err
	}
	out.SHA = commit.SHA
	return out, nil
}
