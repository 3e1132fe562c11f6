package config

// Config is the top-level redu configuration, corresponding to config.yml.
type Config struct {
	// DataDir holds profile rosters and the run-history database.
	DataDir          string    `yaml:"data_dir" koanf:"data_dir"`
	Profile          string    `yaml:"profile" koanf:"profile"`
	MaxConcurrency   int       `yaml:"max_concurrency" koanf:"max_concurrency"`
	RepoNameTemplate string    `yaml:"repo_name_template" koanf:"repo_name_template"`
	Private          bool      `yaml:"private" koanf:"private"`
	Git              GitConfig `yaml:"git" koanf:"git"`
	LMS              LMSConfig `yaml:"lms" koanf:"lms"`
}

// GitConfig selects the Git platform repositories are provisioned on.
type GitConfig struct {
	// Kind is github, gitlab, gitea or local. Empty means detect from BaseURL.
	Kind         string `yaml:"kind" koanf:"kind"`
	BaseURL      string `yaml:"base_url" koanf:"base_url"`
	Org          string `yaml:"org" koanf:"org"`
	TokenEnv     string `yaml:"token_env" koanf:"token_env"`
	IdentityMode string `yaml:"identity_mode" koanf:"identity_mode"`
}

// LMSConfig selects the learning management system rosters are synced from.
type LMSConfig struct {
	Kind     string `yaml:"kind" koanf:"kind"`
	BaseURL  string `yaml:"base_url" koanf:"base_url"`
	TokenEnv string `yaml:"token_env" koanf:"token_env"`
}
