package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsIndraYml(t *testing.T) {
	dir := t.TempDir()
	body := `outputDir: runs
dataDir: /data/confluence
roundBound: 5
expertTimeoutSeconds: 120
verbose: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indra.yml"), []byte(body), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "runs", cfg.OutputDir)
	assert.Equal(t, "/data/confluence", cfg.DataDir)
	assert.Equal(t, 5, cfg.RoundBound)
	assert.Equal(t, 120*time.Second, cfg.ExpertTimeout())
	assert.True(t, cfg.Verbose)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.OutputDir)
	assert.Zero(t, cfg.RoundBound)
	assert.Zero(t, cfg.ExpertTimeout())
}

func TestLoad_EnvFallbacks(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("INDRA_MODEL", "claude-test")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "claude-test", cfg.Model)
}

func TestLoad_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indra.yaml"), []byte("apiKey: sk-file\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.APIKey)
}

func TestLoad_InvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "indra.yml"), []byte(":\t not yaml ["), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}
