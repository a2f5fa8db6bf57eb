package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dnasigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
store:
  kind: badger
  path: /var/lib/dnasigil
log:
  level: debug
seed: 42
`)
	t.Setenv("DNASIGIL_SEED", "7")
	t.Setenv("DNASIGIL_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Store.Kind)
	assert.Equal(t, "/var/lib/dnasigil", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown kind":     "store:\n  kind: postgres\n",
		"sqlite sans path": "store:\n  kind: sqlite\n",
		"bad level":        "log:\n  level: loud\n",
		"unknown field":    "colour: blue\n",
		"negative buffer":  "event_buffer: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("DNASIGIL_SEED", "not-a-number")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadWithBase(t *testing.T) {
	base := Default()
	base.Store = StoreConfig{Kind: "badger", Path: "data"}

	cfg, err := LoadWith(base, "")
	require.NoError(t, err)
	assert.Equal(t, base, cfg)

	t.Setenv("DNASIGIL_STORE_KIND", "memory")
	cfg, err = LoadWith(base, writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, "data", cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}
