package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
sources:
  - id: src-1
    name: Main Bugzilla
    base_url: https://one.com
    config:
      username: hello
      only_if_assigned: hello
      also_unassigned: "true"
  - id: src-2
    name: Legacy Bugzilla
    base_url: two.com/
    enabled: false
    poll_interval_sec: 60
display:
  theme: default
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)

	first := cfg.Sources[0]
	assert.Equal(t, "src-1", first.ID)
	assert.Equal(t, string(SourceTypeBugzilla), first.Type)
	assert.Equal(t, "https://one.com", first.BaseURL)
	assert.True(t, first.Enabled)
	assert.Equal(t, 300, first.PollIntervalSec)
	assert.Equal(t, "hello", first.Config["username"])
	assert.Equal(t, "true", first.Config["also_unassigned"])

	second := cfg.Sources[1]
	assert.False(t, second.Enabled)
	assert.Equal(t, 60, second.PollIntervalSec)
	assert.Equal(t, "two.com/", second.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Sources)
	assert.Equal(t, 300, cfg.Display.PollIntervalSec)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &AppConfig{
		Sources: []SourceConfig{{
			ID:              "src-1",
			Type:            "bugzilla",
			Name:            "Main Bugzilla",
			BaseURL:         "https://one.com",
			Enabled:         true,
			PollIntervalSec: 300,
			Config:          map[string]string{"username": "hello"},
		}},
		Display: DisplayConfig{Theme: "default", PollIntervalSec: 300},
	}

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, "Main Bugzilla", loaded.Sources[0].Name)
	assert.Equal(t, "hello", loaded.Sources[0].Config["username"])
}
