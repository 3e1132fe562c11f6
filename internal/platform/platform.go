// Package platform talks to Git hosting platforms. Each platform family
// implements Platform; New picks one from configuration.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNotFound indicates the platform answered 404 for a non-repository resource.
	ErrNotFound = errors.New("not found")

	// ErrRepoNotFound indicates the repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoExists indicates a repository with that name already exists.
	ErrRepoExists = errors.New("repository already exists")

	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-success response from a platform API.
type APIError struct {
	Platform string
	Status   int
	Message  string
	// Err is a sentinel matching the status, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Platform, e.Status)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Platform, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Kind identifies a platform family.
type Kind string

const (
	GitHub Kind = "github"
	GitLab Kind = "gitlab"
	Gitea  Kind = "gitea"
	Local  Kind = "local"
)

// ParseKind validates a configured kind. Empty is allowed and means "detect".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", GitHub, GitLab, Gitea, Local:
		return k, nil
	default:
		return "", fmt.Errorf("unknown platform kind %q (want github, gitlab, gitea or local)", s)
	}
}

// Detect guesses the platform family from a base URL.
func Detect(baseURL string) Kind {
	s := strings.TrimSpace(baseURL)
	if s == "" || strings.HasPrefix(s, "file://") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, ".") {
		return Local
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return Local
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "github.com" || host == "api.github.com" || strings.HasSuffix(host, ".github.com"):
		return GitHub
	case strings.Contains(host, "gitlab"):
		return GitLab
	default:
		return Gitea
	}
}

// RequiresUsername reports whether repositories on this platform are
// shared with people through their platform usernames.
func (k Kind) RequiresUsername() bool {
	return k == GitHub || k == Gitea
}

// Collaborator is a person to grant access to a repository.
type Collaborator struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// RepoSpec describes a repository to create.
type RepoSpec struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Private       bool           `json:"private"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
}

// Repo is a repository as reported by the platform.
type Repo struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	CloneURL string `json:"clone_url"`
}

// Identity is the account the credentials belong to.
type Identity struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Platform is the capability surface every platform family implements.
type Platform interface {
	Name() string
	VerifyCredentials(ctx context.Context) (*Identity, error)
	CreateRepo(ctx context.Context, spec RepoSpec) (*Repo, error)
	DeleteRepo(ctx context.Context, name string) error
	RepoExists(ctx context.Context, name string) (bool, error)
	CloneRepo(ctx context.Context, name, dest string) error
	UserExists(ctx context.Context, username string) (bool, error)
}

// Config selects and configures a platform.
type Config struct {
	Kind    Kind
	BaseURL string
	// Org is the organization, group or owner that holds the repositories.
	// For Local it is a subdirectory of the root.
	Org   string
	Token string
}

// New returns the Platform for cfg. An empty Kind is detected from BaseURL.
func New(cfg Config) (Platform, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = Detect(cfg.BaseURL)
	}
	switch kind {
	case GitHub:
		return NewGitHub(cfg.BaseURL, cfg.Org, cfg.Token), nil
	case GitLab:
		return NewGitLab(cfg.BaseURL, cfg.Org, cfg.Token), nil
	case Gitea:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("gitea requires a base URL")
		}
		return NewGitea(cfg.BaseURL, cfg.Org, cfg.Token), nil
	case Local:
		return NewLocal(strings.TrimPrefix(cfg.BaseURL, "file://"), cfg.Org), nil
	default:
		return nil, fmt.Errorf("unsupported platform kind: %s", kind)
	}
}
