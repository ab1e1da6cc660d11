package confluence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known bookkeeping keys stamped into every rendered file.
const (
	keyDomainName   = "DOMAIN_NAME"
	keyExperimentID = "EXPERIMENT_ID"
)

// Render serializes a configuration to CONFLUENCE YAML. DOMAIN_NAME and
// EXPERIMENT_ID are stamped first, followed by the set fields in their
// catalog declaration order. A yaml.Node document is built explicitly so
// key order survives marshaling.
func Render(cfg *Configuration, domainName, experimentID string) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	appendPair := func(key string, value any) error {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(value); err != nil {
			return fmt.Errorf("confluence: encode %s: %w", key, err)
		}
		doc.Content = append(doc.Content, keyNode, valNode)
		return nil
	}

	if err := appendPair(keyDomainName, domainName); err != nil {
		return nil, err
	}
	if err := appendPair(keyExperimentID, experimentID); err != nil {
		return nil, err
	}

	// Catalog order, not insertion order: the framework reads its config
	// top to bottom and the file should look the same run over run.
	for _, spec := range cfg.Constraints().Fields {
		value, ok := cfg.Get(spec.Name)
		if !ok {
			continue
		}
		if err := appendPair(spec.Name, value); err != nil {
			return nil, err
		}
	}

	return yaml.Marshal(doc)
}

// NewExperimentID derives a timestamped experiment identifier, matching
// the run_<stamp> convention the framework's tooling expects.
func NewExperimentID(now time.Time) string {
	return "run_" + now.Format("20060102_150405")
}

// Save renders the configuration and writes it under dir as
// config_<domain>_<stamp>.yaml, creating the directory as needed.
// Returns the written path and the experiment ID stamped into the file.
func Save(cfg *Configuration, dir, domainName string, now time.Time) (string, string, error) {
	experimentID := NewExperimentID(now)
	data, err := Render(cfg, domainName, experimentID)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("confluence: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("config_%s_%s.yaml", domainName, now.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("confluence: write %s: %w", path, err)
	}
	return path, experimentID, nil
}
