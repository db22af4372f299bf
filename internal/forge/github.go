package forge

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/fileset"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// GitHub implements Provisioner against the GitHub REST API.
type GitHub struct {
	api       *apiClient
	owner     string
	ownerType config.OwnerType
	branch    string
	committer Committer
	logger    *slog.Logger
}

// GitHubOption customizes a GitHub provisioner.
type GitHubOption func(*GitHub)

// WithCommitter replaces the Git Data API committer.
func WithCommitter(c Committer) GitHubOption {
	return func(g *GitHub) { g.committer = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GitHubOption {
	return func(g *GitHub) { g.logger = l }
}

// NewGitHub creates a GitHub provisioner.
func NewGitHub(httpClient *http.Client, cfg config.ForgeConfig, opts ...GitHubOption) *GitHub {
	api := newAPIClient(httpClient, cfg.APIURL, cfg.Token)
	api.customHeaders["Accept"] = "application/vnd.github+json"
	api.customHeaders["X-GitHub-Api-Version"] = "2022-11-28"

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	g := &GitHub{
		api:       api,
		owner:     cfg.Owner,
		ownerType: cfg.OwnerType,
		branch:    branch,
		logger:    slog.Default(),
	}
	g.committer = &apiCommitter{api: api}
	for _, o := range opts {
		o(g)
	}
	return g
}

type githubRepo struct {
	Name          string `json:"name"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
	Description   string `json:"description"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (g *GitHub) toRepo(r githubRepo) Repo {
	owner := r.Owner.Login
	if owner == "" {
		owner = g.owner
	}
	branch := r.DefaultBranch
	if branch == "" {
		branch = g.branch
	}
	return Repo{
		Owner:         owner,
		Name:          r.Name,
		HTMLURL:       r.HTMLURL,
		CloneURL:      r.CloneURL,
		DefaultBranch: branch,
		Description:   r.Description,
	}
}

func repoPath(owner, name string) string {
	return "repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
}

func (g *GitHub) getRepo(ctx context.Context, name string) (Repo, error) {
	var r githubRepo
	if err := g.api.call(ctx, http.MethodGet, repoPath(g.owner, name), nil, &r); err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return Repo{}, errors.RepoNotFound(name).WithCause(err).Build()
		}
		return Repo{}, err
	}
	return g.toRepo(r), nil
}

// EnsureRepository implements Provisioner.
func (g *GitHub) EnsureRepository(ctx context.Context, name, task string) (Repo, error) {
	repo, err := g.getRepo(ctx, name)
	switch {
	case err == nil:
		return g.checkOwnership(repo, task)
	case errors.KindOf(err) != errors.KindRepoNotFound:
		return Repo{}, err
	}

	endpoint := "user/repos"
	if g.ownerType == config.OwnerOrg {
		endpoint = "orgs/" + url.PathEscape(g.owner) + "/repos"
	}
	body := map[string]any{
		"name":             name,
		"description":      ownershipMarker(task),
		"private":          false,
		"auto_init":        true,
		"license_template": "mit",
	}
	var created githubRepo
	if err := g.api.call(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		// 422 means the name was taken between our read and the create.
		if statusOf(err) == http.StatusUnprocessableEntity {
			repo, gerr := g.getRepo(ctx, name)
			if gerr != nil {
				return Repo{}, gerr
			}
			return g.checkOwnership(repo, task)
		}
		return Repo{}, err
	}
	repo = g.toRepo(created)
	g.logger.Info("Repository created", logfields.Repository(repo.FullName()), logfields.URL(repo.HTMLURL))
	return repo, nil
}

func (g *GitHub) checkOwnership(repo Repo, task string) (Repo, error) {
	if repo.Description != ownershipMarker(task) {
		return Repo{}, errors.RepoNameConflict(repo.FullName()).
			WithContext("description", repo.Description).
			Build()
	}
	return repo, nil
}

type githubTree struct {
	SHA       string `json:"sha"`
	Truncated bool   `json:"truncated"`
	Tree      []struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	} `json:"tree"`
}

type githubBlob struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FetchFileSet implements Provisioner.
func (g *GitHub) FetchFileSet(ctx context.Context, name, task string) (fileset.FileSet, error) {
	current, err := g.getRepo(ctx, name)
	if err != nil {
		return fileset.FileSet{}, err
	}
	if current, err = g.checkOwnership(current, task); err != nil {
		return fileset.FileSet{}, err
	}
	branch := current.DefaultBranch

	var tree githubTree
	endpoint := repoPath(current.Owner, current.Name) + "/git/trees/" + url.PathEscape(branch) + "?recursive=1"
	if err := g.api.call(ctx, http.MethodGet, endpoint, nil, &tree); err != nil {
		// 409: repository has no commits; 404: branch missing.
		if code := statusOf(err); code == http.StatusConflict || code == http.StatusNotFound {
			return fileset.FileSet{}, nil
		}
		return fileset.FileSet{}, err
	}
	if tree.Truncated {
		return fileset.FileSet{}, errors.ForgeError("repository tree listing was truncated").
			Permanent().
			WithContext("repository", current.FullName()).
			Build()
	}

	b := fileset.NewBuilder()
	for _, e := range tree.Tree {
		// Submodules and symlinks are not part of a FileSet.
		if e.Type != "blob" || e.Mode == "120000" {
			continue
		}
		var blob githubBlob
		if err := g.api.call(ctx, http.MethodGet, repoPath(current.Owner, current.Name)+"/git/blobs/"+e.SHA, nil, &blob); err != nil {
			return fileset.FileSet{}, err
		}
		content, err := decodeBlob(blob)
		if err != nil {
			return fileset.FileSet{}, errors.ForgeError("failed to decode blob").WithCause(err).WithContext("path", e.Path).Build()
		}
		if err := b.Add(e.Path, content); err != nil {
			g.logger.Warn("Skipping repository file outside the path policy",
				logfields.Repository(current.FullName()), logfields.Path(e.Path), logfields.Error(err))
		}
	}
	return b.Build(), nil
}

func decodeBlob(b githubBlob) ([]byte, error) {
	switch b.Encoding {
	case "base64":
		return base64.StdEncoding.DecodeString(strings.ReplaceAll(b.Content, "\n", ""))
	case "utf-8", "":
		return []byte(b.Content), nil
	default:
		return nil, fmt.Errorf("unsupported blob encoding %q", b.Encoding)
	}
}

// CommitFileSet implements Provisioner.
func (g *GitHub) CommitFileSet(ctx context.Context, repo Repo, files fileset.FileSet, message string) (CommitRef, error) {
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = g.branch
	}
	ref, err := g.committer.Commit(ctx, repo, files, message)
	if err != nil {
		return CommitRef{}, err
	}
	g.logger.Info("FileSet committed",
		logfields.Repository(repo.FullName()),
		logfields.Commit(ref.SHA),
		logfields.Files(files.Len()))
	return ref, nil
}

type githubPages struct {
	HTMLURL string `json:"html_url"`
	Status  string `json:"status"`
}

// EnableStaticHosting implements Provisioner.
func (g *GitHub) EnableStaticHosting(ctx context.Context, repo Repo) (HostingEndpoint, error) {
	endpoint := repoPath(repo.Owner, repo.Name) + "/pages"
	ep := HostingEndpoint{Owner: repo.Owner, Repo: repo.Name}

	var pages githubPages
	err := g.api.call(ctx, http.MethodGet, endpoint, nil, &pages)
	if err == nil {
		ep.URL = g.pagesURL(repo, pages.HTMLURL)
		return ep, nil
	}
	if !errors.HasCategory(err, errors.CategoryNotFound) {
		return HostingEndpoint{}, err
	}

	branch := repo.DefaultBranch
	if branch == "" {
		branch = g.branch
	}
	body := map[string]any{"source": map[string]string{"branch": branch, "path": "/"}}
	if err := g.api.call(ctx, http.MethodPost, endpoint, body, &pages); err != nil {
		if statusOf(err) != http.StatusConflict {
			return HostingEndpoint{}, err
		}
		// Already enabled by a concurrent call.
		if gerr := g.api.call(ctx, http.MethodGet, endpoint, nil, &pages); gerr != nil {
			return HostingEndpoint{}, gerr
		}
	}
	ep.URL = g.pagesURL(repo, pages.HTMLURL)
	g.logger.Info("Static hosting enabled", logfields.Repository(repo.FullName()), logfields.URL(ep.URL))
	return ep, nil
}

func (g *GitHub) pagesURL(repo Repo, htmlURL string) string {
	if htmlURL != "" {
		return htmlURL
	}
	return fmt.Sprintf("https://%s.github.io/%s/", strings.ToLower(repo.Owner), repo.Name)
}

// PagesBuild is the most recent static hosting build of a repository.
type PagesBuild struct {
	Status string // queued, building, built, errored
	Commit string
	Error  string
}

// LatestPagesBuild returns the newest hosting build. A repository without
// builds yields a zero PagesBuild.
func (g *GitHub) LatestPagesBuild(ctx context.Context, owner, repo string) (PagesBuild, error) {
	var raw struct {
		Status string `json:"status"`
		Commit string `json:"commit"`
		Error  struct {
			Message *string `json:"message"`
		} `json:"error"`
	}
	if err := g.api.call(ctx, http.MethodGet, repoPath(owner, repo)+"/pages/builds/latest", nil, &raw); err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return PagesBuild{}, nil
		}
		return PagesBuild{}, err
	}
	b := PagesBuild{Status: raw.Status, Commit: raw.Commit}
	if raw.Error.Message != nil {
		b.Error = *raw.Error.Message
	}
	return b, nil
}
