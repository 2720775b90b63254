package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// appName is the directory name under the user config directory.
const appName = "seniorflow"

// ProjectConfigFile is the per-project config file in the working directory.
const ProjectConfigFile = ".seniorflow.yaml"

// Loader handles Viper-based configuration loading.
//
// Use [NewLoader] to create one; each Loader owns its own Viper instance so
// tests can load configurations independently.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] with defaults and environment bindings applied.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix("SENIORFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicit bindings for common overrides
	_ = v.BindEnv("forge.token", "SENIORFLOW_FORGE_TOKEN", "GITHUB_TOKEN", "GITLAB_TOKEN")
	_ = v.BindEnv("state.path", "SENIORFLOW_STATE_PATH")
	_ = v.BindEnv("log.level", "SENIORFLOW_LOG_LEVEL")

	setDefaults(v, DefaultConfig())

	return &Loader{v: v}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("iteration_limit", cfg.IterationLimit)
	for name, sc := range cfg.Stages {
		v.SetDefault("stages."+name+".enabled", sc.Enabled)
		v.SetDefault("stages."+name+".required", sc.Required)
		v.SetDefault("stages."+name+".iteration_limit", sc.IterationLimit)
	}
	v.SetDefault("test_patterns", cfg.TestPatterns)
	v.SetDefault("state.path", cfg.State.Path)
	v.SetDefault("forge.provider", cfg.Forge.Provider)
	v.SetDefault("forge.owner", cfg.Forge.Owner)
	v.SetDefault("forge.repo", cfg.Forge.Repo)
	v.SetDefault("forge.base_url", cfg.Forge.BaseURL)
	v.SetDefault("forge.token", cfg.Forge.Token)
	v.SetDefault("forge.base_branch", cfg.Forge.BaseBranch)
	v.SetDefault("forge.draft", cfg.Forge.Draft)
	v.SetDefault("forge.labels", cfg.Forge.Labels)
	v.SetDefault("forge.sync_concurrency", cfg.Forge.SyncConcurrency)
	v.SetDefault("output.color", cfg.Output.Color)
	v.SetDefault("log.level", cfg.Log.Level)
}

// Load reads configuration following the documented priority order.
//
// A missing config file is not an error; defaults and environment variables
// still apply.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv("SENIORFLOW_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			return l.LoadFromFile(path)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads configuration from an explicit file. The format is
// chosen from the file extension (yaml, json, toml).
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration and panics on error. Intended for main
// packages where configuration failure is unrecoverable.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// searchPaths lists config file candidates below the env override, in
// priority order.
func searchPaths() []string {
	var paths []string
	if p, err := DefaultConfigPath(); err == nil {
		paths = append(paths, p)
	}
	return append(paths, ProjectConfigFile)
}

// ConfigDir returns the platform-standard seniorflow config directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigPath returns the user-level config file path.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the user config directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return nil
}
