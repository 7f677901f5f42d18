package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalConfigJSON_OmitsEmptySections(t *testing.T) {
	cfg := &Config{}
	cfg.Process.Deny = []string{"curl"}

	data, err := MarshalConfigJSON(cfg)
	require.NoError(t, err)

	output := string(data)
	assert.Contains(t, output, `"curl"`)
	assert.NotContains(t, output, `"network"`)
	assert.NotContains(t, output, `"filesystem"`)
}

func TestFormatConfigForFile_WithHeaderLines(t *testing.T) {
	cfg := &Config{}
	cfg.Network.AllowedDomains = []string{"*.example.com"}

	output, err := FormatConfigForFile(cfg, FileWriteOptions{
		HeaderLines: []string{
			"// line 1",
			"// line 2",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, output, "// line 1\n// line 2\n{")
	assert.Contains(t, output, `"allowedDomains"`)
}

func TestWriteAndLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "manifest.json")

	cfg := &Config{}
	cfg.Network.DeniedDomains = []string{"evil.test"}
	cfg.Filesystem.AllowGitConfig = true

	require.NoError(t, WriteConfigFile(cfg, path, FileWriteOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"evil.test"`)

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.test"}, loaded.Network.DeniedDomains)
	assert.True(t, loaded.Filesystem.AllowGitConfig)
}

func TestLoadConfigFileToleratesComments(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "manifest.jsonc")
	contents := "{\n  // network policy\n  \"network\": { \"allowedDomains\": [\"*.example.com\"] }\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.example.com"}, cfg.Network.AllowedDomains)
}

func TestLoadConfigFileMissingIsNotError(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}
