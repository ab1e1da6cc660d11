// Package config loads project-level settings for synthesis sessions.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds settings loaded from indra.yml, with environment
// fallbacks for backend credentials.
type ProjectConfig struct {
	// OutputDir receives accepted configurations and audit trails.
	OutputDir string `yaml:"outputDir,omitempty"`

	// DataDir is the CONFLUENCE data root used to locate run outputs.
	DataDir string `yaml:"dataDir,omitempty"`

	// ConfluenceBinary overrides the executable used for handoff.
	ConfluenceBinary string `yaml:"confluenceBinary,omitempty"`

	// APIKey authenticates against the generation backend. Usually left
	// empty here and supplied via ANTHROPIC_API_KEY.
	APIKey string `yaml:"apiKey,omitempty"`

	// Model overrides the backend model identifier.
	Model string `yaml:"model,omitempty"`

	// MaxTokens bounds generation responses. Zero keeps the client
	// default.
	MaxTokens int `yaml:"maxTokens,omitempty"`

	// MaxRetries sets the backend retry budget per call. Zero keeps the
	// client default.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// BackoffMillis is the base delay for backend retry backoff.
	BackoffMillis int `yaml:"backoffMillis,omitempty"`

	// RoundBound caps consultation rounds per attempt.
	RoundBound int `yaml:"roundBound,omitempty"`

	// RetryBudget is the number of fresh session attempts after a fully
	// abstained round.
	RetryBudget int `yaml:"retryBudget,omitempty"`

	// ExpertTimeoutSeconds bounds each individual consultation.
	ExpertTimeoutSeconds int `yaml:"expertTimeoutSeconds,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`
}

// Load attempts to read indra.yml or indra.yaml from the given
// directory. Returns a zero-value config (not an error) if no config
// file exists. Environment fallbacks are applied either way.
func Load(dir string) (*ProjectConfig, error) {
	cfg := &ProjectConfig{}
	for _, name := range []string{"indra.yml", "indra.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		break
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("INDRA_MODEL")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	return cfg, nil
}

// ExpertTimeout returns the configured consultation timeout, or zero
// when unset so callers fall back to their own default.
func (c *ProjectConfig) ExpertTimeout() time.Duration {
	return time.Duration(c.ExpertTimeoutSeconds) * time.Second
}

// Backoff returns the configured retry backoff base, or zero when
// unset.
func (c *ProjectConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}
