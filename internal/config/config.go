// Package config loads and saves the redu configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
	"github.com/repo-edu/repo-edu-sub001/internal/roster"
	"github.com/repo-edu/repo-edu-sub001/internal/storage"
	"github.com/repo-edu/repo-edu-sub001/internal/validate"
)

const envPrefix = "REDU_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (REDU_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// REDU_MAX_CONCURRENCY -> max_concurrency, REDU_GIT_BASE_URL -> git.base_url.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range []string{"git_", "lms_"} {
		if strings.HasPrefix(key, section) {
			return strings.Replace(key, "_", ".", 1)
		}
	}
	return key
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Profile != "" && !storage.ValidProfile(c.Profile) {
		return fmt.Errorf("invalid profile %q", c.Profile)
	}
	if c.MaxConcurrency < 1 || c.MaxConcurrency > 64 {
		return fmt.Errorf("max_concurrency must be between 1 and 64, got %d", c.MaxConcurrency)
	}
	if strings.TrimSpace(c.RepoNameTemplate) == "" {
		return fmt.Errorf("repo_name_template is required")
	}
	if _, err := platform.ParseKind(c.Git.Kind); err != nil {
		return fmt.Errorf("git.kind: %w", err)
	}
	if _, err := validate.ParseIdentityMode(c.Git.IdentityMode); err != nil {
		return fmt.Errorf("git.identity_mode: %w", err)
	}
	switch roster.LMSKind(c.LMS.Kind) {
	case roster.LMSNone, roster.LMSCanvas, roster.LMSNRPS:
	default:
		return fmt.Errorf("invalid lms.kind %q: must be canvas or nrps", c.LMS.Kind)
	}
	return nil
}

// GitKind returns the configured platform kind, detected from the base
// URL when unset.
func (c *Config) GitKind() platform.Kind {
	if k, err := platform.ParseKind(c.Git.Kind); err == nil && k != "" {
		return k
	}
	return platform.Detect(c.Git.BaseURL)
}

// Identity returns the identity mode for the configured platform. Only
// GitLab honors the configured mode. GitHub and Gitea always need
// usernames and the local platform never does.
func (c *Config) Identity() validate.IdentityMode {
	switch kind := c.GitKind(); {
	case kind == platform.Local:
		return validate.IdentityEmail
	case kind.RequiresUsername():
		return validate.IdentityUsername
	default:
		mode, err := validate.ParseIdentityMode(c.Git.IdentityMode)
		if err != nil {
			return validate.IdentityUsername
		}
		return mode
	}
}

// PlatformConfig builds the platform configuration, reading the token from
// the environment.
func (c *Config) PlatformConfig() platform.Config {
	kind := c.GitKind()
	return platform.Config{
		Kind:    kind,
		BaseURL: c.Git.BaseURL,
		Org:     c.Git.Org,
		Token:   os.Getenv(TokenEnvVar(string(kind), c.Git.TokenEnv)),
	}
}

// LMSToken reads the LMS token from the environment.
func (c *Config) LMSToken() string {
	return os.Getenv(TokenEnvVar(c.LMS.Kind, c.LMS.TokenEnv))
}

// HistoryPath is the run-history database file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
