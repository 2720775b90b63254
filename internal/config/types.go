// Package config provides configuration loading and management for seniorflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The package provides sensible defaults that work out of the
// box, with the ability to customize stage policy, state location, the forge used
// for change-sets, output and logging.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [StageConfig] holds per-stage policy overrides
//   - [ForgeConfig] contains pull-request host settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SENIORFLOW_ prefix)
//  2. Config file specified by SENIORFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/seniorflow/config.yaml
//     - macOS: ~/Library/Application Support/seniorflow/config.yaml
//     - Windows: %APPDATA%\seniorflow\config.yaml
//  4. ./.seniorflow.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"
	"sort"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// IterationLimit is the number of revision rounds each stage may use
	// before escalation. Default: 3
	IterationLimit int `mapstructure:"iteration_limit"`

	// Stages maps stage names (e.g., "architecture") to policy overrides.
	Stages map[string]StageConfig `mapstructure:"stages"`

	// TestPatterns are doublestar globs identifying test files. Approved
	// test files matching them may not change during implementation.
	// Default: ["**/*_test.go"]
	TestPatterns []string `mapstructure:"test_patterns"`

	// State contains workflow state file settings.
	State StateConfig `mapstructure:"state"`

	// Forge contains pull-request host settings.
	Forge ForgeConfig `mapstructure:"forge"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log contains diagnostic logging configuration.
	Log LogConfig `mapstructure:"log"`
}

// StageConfig is the project policy for a single stage.
type StageConfig struct {
	// Enabled is false when the project never runs the stage. Only
	// architecture and object-design may be disabled.
	Enabled bool `mapstructure:"enabled"`

	// Required keeps the stage even for simple features.
	Required bool `mapstructure:"required"`

	// IterationLimit overrides the global limit when positive.
	IterationLimit int `mapstructure:"iteration_limit"`
}

// StateConfig contains workflow state file settings.
type StateConfig struct {
	// Path is the state file location. Empty means .seniorflow/workflows.yaml
	// under the working directory. SENIORFLOW_STATE_PATH overrides it.
	Path string `mapstructure:"path"`
}

// ForgeConfig contains pull-request host settings.
//
// When Provider is empty no change-sets are opened and approval arrives
// only through the approve command.
type ForgeConfig struct {
	// Provider selects the forge implementation. Supported: "github", "gitlab".
	Provider string `mapstructure:"provider"`

	// BaseURL is the API URL of a self-hosted GitLab instance. Empty means
	// gitlab.com. Ignored for GitHub.
	BaseURL string `mapstructure:"base_url"`

	// Owner and Repo identify the repository.
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`

	// Token authenticates API calls. Can be set with SENIORFLOW_FORGE_TOKEN,
	// GITHUB_TOKEN or GITLAB_TOKEN.
	Token string `mapstructure:"token"`

	// BaseBranch is the branch change-sets target. Default: "main"
	BaseBranch string `mapstructure:"base_branch"`

	// Draft opens change-sets as drafts.
	Draft bool `mapstructure:"draft"`

	// Labels are applied to every change-set.
	Labels []string `mapstructure:"labels"`

	// SyncConcurrency bounds the change-sets polled at once by "sync --all".
	// Default: 4
	SyncConcurrency int `mapstructure:"sync_concurrency"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Color is "auto", "always" or "never". Default: "auto"
	Color string `mapstructure:"color"`
}

// LogConfig contains diagnostic logging configuration.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error. Default: "warn"
	Level string `mapstructure:"level"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// Every stage is enabled; architecture and object-design are skipped for
// simple features. No forge is configured.
func DefaultConfig() *Config {
	stages := make(map[string]StageConfig, len(stage.All))
	for _, s := range stage.All {
		stages[s.String()] = StageConfig{
			Enabled:  true,
			Required: !s.Skippable(),
		}
	}

	return &Config{
		IterationLimit: workflow.DefaultIterationLimit,
		Stages:         stages,
		TestPatterns:   append([]string(nil), gate.DefaultTestPatterns...),
		Forge: ForgeConfig{
			BaseBranch:      "main",
			SyncConcurrency: 4,
		},
		Output: OutputConfig{
			Color: "auto",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Policy converts the stage settings into the immutable [workflow.Policy]
// captured by new instances.
//
// Returns an error for unknown stage names, a global limit below 1, or a
// policy that [workflow.Policy.Validate] rejects.
func (c *Config) Policy() (workflow.Policy, error) {
	if c.IterationLimit < 1 {
		return workflow.Policy{}, fmt.Errorf("%w: iteration_limit must be at least 1, got %d", workflow.ErrInvalidPolicy, c.IterationLimit)
	}

	names := make([]string, 0, len(c.Stages))
	for name := range c.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var rules []workflow.StageRule
	for _, name := range names {
		s, err := stage.Parse(name)
		if err != nil {
			return workflow.Policy{}, fmt.Errorf("%w: stages.%s: %v", workflow.ErrInvalidPolicy, name, err)
		}
		sc := c.Stages[name]
		rules = append(rules, workflow.StageRule{
			Stage:          s,
			Enabled:        sc.Enabled,
			Required:       sc.Required,
			IterationLimit: sc.IterationLimit,
		})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Stage < rules[j].Stage })

	p := workflow.Policy{IterationLimit: c.IterationLimit, Rules: rules}
	if err := p.Validate(); err != nil {
		return workflow.Policy{}, err
	}
	return p, nil
}
