package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), LoadOptions{WorkDir: t.TempDir(), UserDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8888", cfg.Server)
	assert.Equal(t, render.AltHTML, cfg.RenderStyle())
	assert.Equal(t, 4096, cfg.MaxDepth)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, filepath.Join(cfg.StateDir, "cache.db"), cfg.Cache.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadLayersUserProjectAndEnv(t *testing.T) {
	userDir := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "sub")
	require.NoError(t, os.MkdirAll(work, 0o755))

	writeFile(t, filepath.Join(userDir, FileName), "server: http://user:1\nstyle: latex\nworkset: 2\n")
	writeFile(t, filepath.Join(project, ProjectDir, FileName), "style: text\ncache:\n  enabled: false\n")
	t.Setenv("PV_WORKSET", "5")

	cfg, err := Load(New(), LoadOptions{WorkDir: work, UserDir: userDir})
	require.NoError(t, err)

	assert.Equal(t, "http://user:1", cfg.Server, "user file")
	assert.Equal(t, render.Text, cfg.RenderStyle(), "project overrides user")
	assert.False(t, cfg.Cache.Enabled, "project nested key")
	assert.Equal(t, 5, cfg.Workset, "environment overrides files")
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "file: ~/dumps/set.pv.json\ninclude_non_essentials: true\nmax_depth: 10\n")

	cfg, err := Load(New(), LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "dumps", "set.pv.json"), cfg.File)
	assert.True(t, cfg.IncludeNonEssentials)
	assert.Equal(t, 10, cfg.MaxDepth)

	_, err = Load(New(), LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"style":    "style: braille\n",
		"depth":    "max_depth: -1\n",
		"workset":  "workset: -3\n",
		"nosource": "server: \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			writeFile(t, path, content)
			_, err := Load(New(), LoadOptions{ConfigFile: path})
			assert.Error(t, err)
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectDir, FileName)
	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "refuses to overwrite")
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# pv configuration")
	assert.Contains(t, string(data), "include_non_essentials: false")

	cfg, err := Load(New(), LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, Default().MaxDepth, cfg.MaxDepth)
}
