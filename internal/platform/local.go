package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// LocalPlatform keeps bare repositories under a directory on disk. It is
// meant for dry runs and tests; it has no notion of user accounts.
type LocalPlatform struct {
	dir string
}

// NewLocal stores repositories in root/org/<name>.git.
func NewLocal(root, org string) *LocalPlatform {
	if root == "" {
		root = "."
	}
	return &LocalPlatform{dir: filepath.Join(root, org)}
}

func (p *LocalPlatform) Name() string {
	return "local"
}

func (p *LocalPlatform) repoDir(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid repository name %q", name)
	}
	return filepath.Join(p.dir, name+".git"), nil
}

func (p *LocalPlatform) VerifyCredentials(ctx context.Context) (*Identity, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repository root: %w", err)
	}
	name := "local"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return &Identity{Username: name}, nil
}

func (p *LocalPlatform) CreateRepo(ctx context.Context, spec RepoSpec) (*Repo, error) {
	dir, err := p.repoDir(spec.Name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("create local repo %s: %w", spec.Name, ErrRepoExists)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repository root: %w", err)
	}
	if err := runGit(ctx, p.dir, "init", "--quiet", "--bare", dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("create local repo %s: %w", spec.Name, err)
	}
	if spec.Description != "" {
		_ = os.WriteFile(filepath.Join(dir, "description"), []byte(spec.Description+"\n"), 0o644)
	}
	return &Repo{Name: spec.Name, URL: dir, CloneURL: dir}, nil
}

func (p *LocalPlatform) DeleteRepo(ctx context.Context, name string) error {
	dir, err := p.repoDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete local repo %s: %w", name, ErrRepoNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete local repo %s: %w", name, err)
	}
	return nil
}

func (p *LocalPlatform) RepoExists(ctx context.Context, name string) (bool, error) {
	dir, err := p.repoDir(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (p *LocalPlatform) CloneRepo(ctx context.Context, name, dest string) error {
	dir, err := p.repoDir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clone local repo %s: %w", name, ErrRepoNotFound)
	}
	return gitClone(ctx, dir, dest)
}

// UserExists always succeeds: local repositories are not shared with accounts.
func (p *LocalPlatform) UserExists(ctx context.Context, username string) (bool, error) {
	return true, nil
}
