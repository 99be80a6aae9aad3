// Package config loads project settings from .reqtrace.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/reqtrace/reqtrace-go/internal/graph"
)

// FileName is the project configuration file looked up in the project
// root.
const FileName = ".reqtrace.yaml"

// DataDirName is the directory holding snapshots and caches.
const DataDirName = ".reqtrace"

// Config holds the project settings.
type Config struct {
	// DefaultPrefix is prepended to bare requirement references.
	DefaultPrefix string `yaml:"default_prefix"`

	// StrictMode rolls child assertion counts into parent coverage.
	StrictMode bool `yaml:"strict_mode"`

	// ExcludedStatuses lists requirement statuses ignored by coverage.
	ExcludedStatuses []string `yaml:"excluded_statuses"`

	// HashMode selects requirement hashing: normalized or full-text.
	HashMode string `yaml:"hash_mode"`

	// SpecGlobs select the spec markdown files to ingest.
	SpecGlobs []string `yaml:"spec_globs"`

	// ResultsGlobs select the test report files to ingest.
	ResultsGlobs []string `yaml:"results_globs"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DefaultPrefix:    "REQ-",
		ExcludedStatuses: []string{"deprecated"},
		HashMode:         string(graph.HashNormalized),
		SpecGlobs:        []string{"specs/**/*.md", "docs/specs/**/*.md"},
		ResultsGlobs:     []string{"**/*.results.json"},
	}
}

// Load reads the configuration from the project root. A missing file
// yields the defaults; a malformed one is an error.
func Load(root string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the project root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(filepath.Join(root, FileName), data, 0o644)
}

func (c *Config) validate() error {
	switch graph.HashMode(c.HashMode) {
	case graph.HashNormalized, graph.HashFullText, "":
	default:
		return fmt.Errorf("unknown hash_mode %q", c.HashMode)
	}
	return nil
}

// BuildConfig converts the settings the graph builder needs.
func (c *Config) BuildConfig() graph.BuildConfig {
	return graph.BuildConfig{
		DefaultPrefix: c.DefaultPrefix,
		HashMode:      graph.HashMode(c.HashMode),
	}
}

// RollupOptions converts the settings the coverage rollup needs.
func (c *Config) RollupOptions() graph.RollupOptions {
	return graph.RollupOptions{
		StrictMode:       c.StrictMode,
		ExcludedStatuses: append([]string(nil), c.ExcludedStatuses...),
	}
}

// DataDir returns the snapshot directory under the project root.
func (c *Config) DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}
