package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GiteaPlatform implements Platform against the Gitea (and Forgejo) API.
type GiteaPlatform struct {
	api   *apiClient
	org   string
	token string
}

// NewGitea creates a Gitea client for the instance at baseURL.
func NewGitea(baseURL, org, token string) *GiteaPlatform {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/api/v1") {
		base += "/api/v1"
	}
	return &GiteaPlatform{
		api: newAPIClient("gitea", base, func(r *http.Request) {
			if token != "" {
				r.Header.Set("Authorization", "token "+token)
			}
		}),
		org:   org,
		token: token,
	}
}

func (p *GiteaPlatform) Name() string {
	return "gitea"
}

type giteaUser struct {
	Login    string `json:"login"`
	FullName string `json:"full_name"`
}

type giteaRepo struct {
	Name     string `json:"name"`
	HTMLURL  string `json:"html_url"`
	CloneURL string `json:"clone_url"`
}

func (p *GiteaPlatform) VerifyCredentials(ctx context.Context) (*Identity, error) {
	var u giteaUser
	if err := p.api.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, fmt.Errorf("verify gitea credentials: %w", err)
	}
	return &Identity{Username: u.Login, Name: u.FullName}, nil
}

func (p *GiteaPlatform) repoPath(name string) string {
	return "/repos/" + url.PathEscape(p.org) + "/" + url.PathEscape(name)
}

func (p *GiteaPlatform) CreateRepo(ctx context.Context, spec RepoSpec) (*Repo, error) {
	req := map[string]any{
		"name":        spec.Name,
		"description": spec.Description,
		"private":     spec.Private,
	}
	var created giteaRepo
	if err := p.api.do(ctx, http.MethodPost, "/orgs/"+url.PathEscape(p.org)+"/repos", req, &created); err != nil {
		return nil, fmt.Errorf("create gitea repo %s: %w", spec.Name, err)
	}
	for _, c := range spec.Collaborators {
		if c.Username == "" {
			continue
		}
		path := p.repoPath(spec.Name) + "/collaborators/" + url.PathEscape(c.Username)
		if err := p.api.do(ctx, http.MethodPut, path, map[string]string{"permission": "write"}, nil); err != nil {
			return nil, fmt.Errorf("add collaborator %s to %s: %w", c.Username, spec.Name, err)
		}
	}
	return &Repo{Name: created.Name, URL: created.HTMLURL, CloneURL: created.CloneURL}, nil
}

func (p *GiteaPlatform) DeleteRepo(ctx context.Context, name string) error {
	if err := p.api.do(ctx, http.MethodDelete, p.repoPath(name), nil, nil); err != nil {
		return fmt.Errorf("delete gitea repo %s: %w", name, repoErr(err))
	}
	return nil
}

func (p *GiteaPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	return exists(p.api.do(ctx, http.MethodGet, p.repoPath(name), nil, nil))
}

func (p *GiteaPlatform) CloneRepo(ctx context.Context, name, dest string) error {
	var r giteaRepo
	if err := p.api.do(ctx, http.MethodGet, p.repoPath(name), nil, &r); err != nil {
		return fmt.Errorf("look up gitea repo %s: %w", name, err)
	}
	return gitClone(ctx, cloneURL(r.CloneURL, "oauth2", p.token), dest)
}

func (p *GiteaPlatform) UserExists(ctx context.Context, username string) (bool, error) {
	return exists(p.api.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, nil))
}
