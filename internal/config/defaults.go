package config

import (
	"os"
	"path/filepath"

	"github.com/repo-edu/repo-edu-sub001/internal/ident"
)

// DefaultProfile is used when no profile is configured or given.
const DefaultProfile = "default"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          defaultDataDir(),
		Profile:          DefaultProfile,
		MaxConcurrency:   5,
		RepoNameTemplate: ident.DefaultRepoNameTemplate,
		Private:          true,
	}
}

// DefaultPath returns ~/.config/redu/config.yml, or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "redu.yml"
	}
	return filepath.Join(dir, "redu", "config.yml")
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "redu")
	}
	return ".redu"
}

// defaultTokenEnv is the conventional token variable per platform or LMS kind.
var defaultTokenEnv = map[string]string{
	"github": "GITHUB_TOKEN",
	"gitlab": "GITLAB_TOKEN",
	"gitea":  "GITEA_TOKEN",
	"canvas": "CANVAS_TOKEN",
	"nrps":   "LTI_TOKEN",
}

// TokenEnvVar returns the environment variable holding the token for kind
// unless configured is set.
func TokenEnvVar(kind, configured string) string {
	if configured != "" {
		return configured
	}
	return defaultTokenEnv[kind]
}
