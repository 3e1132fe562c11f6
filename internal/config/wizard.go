package config

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/repo-edu/repo-edu-sub001/internal/platform"
)

var platformChoices = []string{"github", "gitlab", "gitea", "local"}

var lmsChoices = []string{"none", "canvas", "nrps"}

// RunWizard asks for the settings redu needs, starting from base, and
// saves the result to path.
func RunWizard(base *Config, path string, out io.Writer) (*Config, error) {
	cfg := *base
	fmt.Fprintln(out, "Welcome to redu! Let's configure where repositories live.")
	fmt.Fprintln(out)

	kindPrompt := promptui.Select{Label: "Git platform", Items: platformChoices}
	_, kind, err := kindPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("platform selection: %w", err)
	}
	cfg.Git.Kind = kind

	baseLabel, baseDefault := "Base URL", cfg.Git.BaseURL
	switch platform.Kind(kind) {
	case platform.GitHub:
		if baseDefault == "" {
			baseDefault = "https://github.com"
		}
	case platform.GitLab:
		if baseDefault == "" {
			baseDefault = "https://gitlab.com"
		}
	case platform.Local:
		baseLabel = "Directory holding bare repositories"
	}
	if cfg.Git.BaseURL, err = (&promptui.Prompt{Label: baseLabel, Default: baseDefault}).Run(); err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	if cfg.Git.Org, err = (&promptui.Prompt{Label: "Organization or group", Default: cfg.Git.Org}).Run(); err != nil {
		return nil, fmt.Errorf("organization: %w", err)
	}

	if platform.Kind(kind) == platform.GitLab {
		modePrompt := promptui.Select{Label: "Grant access by", Items: []string{"username", "email"}}
		if _, cfg.Git.IdentityMode, err = modePrompt.Run(); err != nil {
			return nil, fmt.Errorf("identity mode: %w", err)
		}
	}

	lmsPrompt := promptui.Select{Label: "Learning management system", Items: lmsChoices}
	_, lms, err := lmsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("lms selection: %w", err)
	}
	cfg.LMS.Kind = ""
	if lms != "none" {
		cfg.LMS.Kind = lms
	}
	if lms == "canvas" {
		if cfg.LMS.BaseURL, err = (&promptui.Prompt{Label: "Canvas URL", Default: cfg.LMS.BaseURL}).Run(); err != nil {
			return nil, fmt.Errorf("canvas url: %w", err)
		}
	}

	concurrency := promptui.Prompt{
		Label:   "Parallel repository operations",
		Default: strconv.Itoa(cfg.MaxConcurrency),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 64 {
				return fmt.Errorf("enter a number between 1 and 64")
			}
			return nil
		},
	}
	n, err := concurrency.Run()
	if err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	cfg.MaxConcurrency, _ = strconv.Atoi(n)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, envVar := range []string{TokenEnvVar(kind, cfg.Git.TokenEnv), TokenEnvVar(cfg.LMS.Kind, cfg.LMS.TokenEnv)} {
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Fprintf(out, "\nNote: set %s in your environment before running redu.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "\nConfiguration saved to %s\n", path)
	return &cfg, nil
}
