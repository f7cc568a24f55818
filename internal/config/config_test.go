package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outreach.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.exa.ai", cfg.Exa.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, 25, cfg.Research.MaxCandidates)
	assert.Equal(t, 20, cfg.Research.AutopromptResults)
	assert.Equal(t, 6, cfg.Research.HypothesisResults)
	assert.Equal(t, 5, cfg.Research.IdentityResults)
	assert.Equal(t, 200, cfg.Research.MinDocumentLength)
	assert.Equal(t, 400, cfg.Research.MinHighlightBudget)
	assert.Equal(t, 6, cfg.Research.MaxExtractDocs)
	assert.InDelta(t, 0.8, cfg.Research.DisambiguationBelow, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/outreach
log:
  level: debug
  format: console
server:
  port: 9090
research:
  max_candidates: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/outreach", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Research.MaxCandidates)
	// Untouched defaults survive.
	assert.Equal(t, 20, cfg.Research.AutopromptResults)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Exa.Key = "xk"
	assert.Error(t, cfg.Validate())

	cfg.Anthropic.Key = "ak"
	assert.NoError(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.Error(t, InitLogger(LogConfig{Level: "bogus", Format: "json"}))
}
