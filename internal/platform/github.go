package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GitHubPlatform implements Platform against the GitHub REST API.
type GitHubPlatform struct {
	api   *apiClient
	org   string
	token string
}

// NewGitHub creates a GitHub client. An empty or github.com base URL
// targets api.github.com; any other host is treated as GitHub Enterprise.
func NewGitHub(baseURL, org, token string) *GitHubPlatform {
	return &GitHubPlatform{
		api: newAPIClient("github", githubAPIBase(baseURL), func(r *http.Request) {
			if token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
			r.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		}),
		org:   org,
		token: token,
	}
}

func githubAPIBase(baseURL string) string {
	s := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if s == "" {
		return "https://api.github.com"
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	switch {
	case u.Hostname() == "github.com":
		return "https://api.github.com"
	case u.Hostname() == "api.github.com", strings.HasSuffix(u.Path, "/api/v3"):
		return s
	case u.Scheme == "http" && (u.Hostname() == "127.0.0.1" || u.Hostname() == "localhost"):
		return s
	default:
		return s + "/api/v3"
	}
}

func (p *GitHubPlatform) Name() string {
	return "github"
}

type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubRepo struct {
	Name     string `json:"name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
}

func (r githubRepo) repo() *Repo {
	return &Repo{Name: r.Name, URL: r.HTMLURL, CloneURL: r.CloneURL}
}

func (p *GitHubPlatform) VerifyCredentials(ctx context.Context) (*Identity, error) {
	var u githubUser
	if err := p.api.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, fmt.Errorf("verify github credentials: %w", err)
	}
	return &Identity{Username: u.Login, Name: u.Name}, nil
}

func (p *GitHubPlatform) CreateRepo(ctx context.Context, spec RepoSpec) (*Repo, error) {
	req := map[string]any{
		"name":        spec.Name,
		"description": spec.Description,
		"private":     spec.Private,
		"auto_init":   false,
	}
	var created githubRepo
	err := p.api.do(ctx, http.MethodPost, "/orgs/"+url.PathEscape(p.org)+"/repos", req, &created)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity && strings.Contains(apiErr.Message, "already exists") {
			apiErr.Err = ErrRepoExists
		}
		return nil, fmt.Errorf("create github repo %s: %w", spec.Name, err)
	}

	for _, c := range spec.Collaborators {
		if c.Username == "" {
			continue
		}
		path := fmt.Sprintf("/repos/%s/%s/collaborators/%s", url.PathEscape(p.org), url.PathEscape(spec.Name), url.PathEscape(c.Username))
		if err := p.api.do(ctx, http.MethodPut, path, map[string]string{"permission": "push"}, nil); err != nil {
			return nil, fmt.Errorf("add collaborator %s to %s: %w", c.Username, spec.Name, err)
		}
	}
	return created.repo(), nil
}

func (p *GitHubPlatform) repoPath(name string) string {
	return "/repos/" + url.PathEscape(p.org) + "/" + url.PathEscape(name)
}

func (p *GitHubPlatform) DeleteRepo(ctx context.Context, name string) error {
	if err := p.api.do(ctx, http.MethodDelete, p.repoPath(name), nil, nil); err != nil {
		return fmt.Errorf("delete github repo %s: %w", name, repoErr(err))
	}
	return nil
}

func (p *GitHubPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	return exists(p.api.do(ctx, http.MethodGet, p.repoPath(name), nil, nil))
}

func (p *GitHubPlatform) CloneRepo(ctx context.Context, name, dest string) error {
	var r githubRepo
	if err := p.api.do(ctx, http.MethodGet, p.repoPath(name), nil, &r); err != nil {
		return fmt.Errorf("look up github repo %s: %w", name, err)
	}
	return gitClone(ctx, cloneURL(r.CloneURL, "x-access-token", p.token), dest)
}

func (p *GitHubPlatform) UserExists(ctx context.Context, username string) (bool, error) {
	return exists(p.api.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, nil))
}
