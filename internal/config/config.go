// Package config holds the application configuration and its loader.
package config

import (
	"fmt"
	"time"
)

// Config represents the full application configuration.
type Config struct {
	Patcher       PatcherConfig       `yaml:"patcher"`
	Git           GitConfig           `yaml:"git"`
	Store         StoreConfig         `yaml:"store"`
	Output        OutputConfig        `yaml:"output"`
	Display       DisplayConfig       `yaml:"display"`
	Limits        LimitsConfig        `yaml:"limits"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PatcherConfig selects and tunes the patch collaborator.
type PatcherConfig struct {
	// Mode is "local" (in-process) or "remote" (HTTP service).
	Mode string `yaml:"mode"`

	// Endpoint is the base URL of the remote patch service.
	Endpoint string `yaml:"endpoint"`

	// HTTP client settings for the remote patcher.
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`

	// ContextLines controls the context width of recomputed diffs.
	ContextLines int `yaml:"contextLines"`
}

// GitConfig locates the repository under review.
type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`

	// Ref pins base content to a commit-ish; empty reads the worktree.
	Ref string `yaml:"ref"`
}

// StoreConfig configures the change-set history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig configures where finalized change sets are written.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"` // markdown, json, or both

	// RedactSecrets scrubs detected secrets from written artifacts.
	RedactSecrets bool `yaml:"redactSecrets"`
}

// DisplayConfig tunes the interactive diff presentation.
type DisplayConfig struct {
	// CollapseThreshold is the minimum context-run length that gets
	// collapsed into an expandable group.
	CollapseThreshold int `yaml:"collapseThreshold"`
}

// LimitsConfig bounds inbound review results.
type LimitsConfig struct {
	MaxFileBytes          int `yaml:"maxFileBytes"`
	MaxSuggestionsPerFile int `yaml:"maxSuggestionsPerFile"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // debug, info, error
	Format  string `yaml:"format"` // json, human
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	switch c.Patcher.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("patcher.mode must be \"local\" or \"remote\", got %q", c.Patcher.Mode)
	}

	if c.Patcher.Mode == "remote" && c.Patcher.Endpoint == "" {
		return fmt.Errorf("patcher.endpoint is required when patcher.mode is \"remote\"")
	}

	for name, value := range map[string]string{
		"patcher.timeout":        c.Patcher.Timeout,
		"patcher.initialBackoff": c.Patcher.InitialBackoff,
		"patcher.maxBackoff":     c.Patcher.MaxBackoff,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}

	switch c.Output.Format {
	case "", "markdown", "json", "both":
	default:
		return fmt.Errorf("output.format must be \"markdown\", \"json\", or \"both\", got %q", c.Output.Format)
	}

	if c.Display.CollapseThreshold < 2 {
		return fmt.Errorf("display.collapseThreshold must be at least 2, got %d", c.Display.CollapseThreshold)
	}

	return nil
}

// PatcherTimeout returns the parsed timeout, falling back to the default.
func (c Config) PatcherTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Patcher.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// PatcherBackoff returns the parsed backoff bounds with defaults applied.
func (c Config) PatcherBackoff() (initial, max time.Duration) {
	initial, max = time.Second, 16*time.Second
	if d, err := time.ParseDuration(c.Patcher.InitialBackoff); err == nil && d > 0 {
		initial = d
	}
	if d, err := time.ParseDuration(c.Patcher.MaxBackoff); err == nil && d > 0 {
		max = d
	}
	return initial, max
}
