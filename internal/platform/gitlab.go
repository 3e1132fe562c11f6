package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// GitLab access level granted to group members on their repository.
const gitlabDeveloper = 30

// GitLabPlatform implements Platform against the GitLab v4 API. Org is the
// full path of the group that holds the projects.
type GitLabPlatform struct {
	api   *apiClient
	group string
	token string

	mu      sync.Mutex
	groupID int
}

// NewGitLab creates a GitLab client. An empty base URL targets gitlab.com.
func NewGitLab(baseURL, group, token string) *GitLabPlatform {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://gitlab.com"
	}
	if !strings.HasSuffix(base, "/api/v4") {
		base += "/api/v4"
	}
	return &GitLabPlatform{
		api: newAPIClient("gitlab", base, func(r *http.Request) {
			if token != "" {
				r.Header.Set("PRIVATE-TOKEN", token)
			}
		}),
		group: strings.Trim(group, "/"),
		token: token,
	}
}

func (p *GitLabPlatform) Name() string {
	return "gitlab"
}

type gitlabUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type gitlabProject struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	WebURL        string `json:"web_url"`
	HTTPURLToRepo string `json:"http_url_to_repo"`
}

func (p *GitLabPlatform) VerifyCredentials(ctx context.Context) (*Identity, error) {
	var u gitlabUser
	if err := p.api.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, fmt.Errorf("verify gitlab credentials: %w", err)
	}
	return &Identity{Username: u.Username, Name: u.Name}, nil
}

// namespaceID resolves the group path to its numeric ID once.
func (p *GitLabPlatform) namespaceID(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.groupID != 0 {
		return p.groupID, nil
	}
	var g struct {
		ID int `json:"id"`
	}
	if err := p.api.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(p.group), nil, &g); err != nil {
		return 0, fmt.Errorf("look up gitlab group %s: %w", p.group, err)
	}
	p.groupID = g.ID
	return g.ID, nil
}

func (p *GitLabPlatform) projectPath(name string) string {
	return "/projects/" + url.PathEscape(p.group+"/"+name)
}

func (p *GitLabPlatform) CreateRepo(ctx context.Context, spec RepoSpec) (*Repo, error) {
	nsID, err := p.namespaceID(ctx)
	if err != nil {
		return nil, err
	}
	visibility := "internal"
	if spec.Private {
		visibility = "private"
	}
	req := map[string]any{
		"name":         spec.Name,
		"path":         spec.Name,
		"namespace_id": nsID,
		"visibility":   visibility,
		"description":  spec.Description,
	}
	var created gitlabProject
	if err := p.api.do(ctx, http.MethodPost, "/projects", req, &created); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && strings.Contains(apiErr.Message, "has already been taken") {
			apiErr.Err = ErrRepoExists
		}
		return nil, fmt.Errorf("create gitlab project %s: %w", spec.Name, err)
	}

	for _, c := range spec.Collaborators {
		if err := p.addMember(ctx, created.ID, c); err != nil {
			return nil, fmt.Errorf("add member to %s: %w", spec.Name, err)
		}
	}
	return &Repo{Name: created.Name, URL: created.WebURL, CloneURL: created.HTTPURLToRepo}, nil
}

// addMember adds a user by username, or invites them by email when no
// username is known.
func (p *GitLabPlatform) addMember(ctx context.Context, projectID int, c Collaborator) error {
	path := fmt.Sprintf("/projects/%d", projectID)
	if c.Username != "" {
		u, err := p.lookupUser(ctx, c.Username)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("gitlab user %s not found", c.Username)
		}
		return p.api.do(ctx, http.MethodPost, path+"/members", map[string]any{
			"user_id":      u.ID,
			"access_level": gitlabDeveloper,
		}, nil)
	}
	if c.Email != "" {
		return p.api.do(ctx, http.MethodPost, path+"/invitations", map[string]any{
			"email":        c.Email,
			"access_level": gitlabDeveloper,
		}, nil)
	}
	return nil
}

func (p *GitLabPlatform) lookupUser(ctx context.Context, username string) (*gitlabUser, error) {
	var users []gitlabUser
	if err := p.api.do(ctx, http.MethodGet, "/users?username="+url.QueryEscape(username), nil, &users); err != nil {
		return nil, fmt.Errorf("look up gitlab user %s: %w", username, err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (p *GitLabPlatform) DeleteRepo(ctx context.Context, name string) error {
	if err := p.api.do(ctx, http.MethodDelete, p.projectPath(name), nil, nil); err != nil {
		return fmt.Errorf("delete gitlab project %s: %w", name, repoErr(err))
	}
	return nil
}

func (p *GitLabPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	return exists(p.api.do(ctx, http.MethodGet, p.projectPath(name), nil, nil))
}

func (p *GitLabPlatform) CloneRepo(ctx context.Context, name, dest string) error {
	var proj gitlabProject
	if err := p.api.do(ctx, http.MethodGet, p.projectPath(name), nil, &proj); err != nil {
		return fmt.Errorf("look up gitlab project %s: %w", name, err)
	}
	return gitClone(ctx, cloneURL(proj.HTTPURLToRepo, "oauth2", p.token), dest)
}

func (p *GitLabPlatform) UserExists(ctx context.Context, username string) (bool, error) {
	u, err := p.lookupUser(ctx, username)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}
