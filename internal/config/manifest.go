package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// FileWriteOptions controls config file formatting behavior.
type FileWriteOptions struct {
	// HeaderLines are written above the JSON content (one line per entry).
	// Lines are written as provided; callers can include comment prefixes.
	HeaderLines []string
}

// cleanNetworkConfig is used for JSON output with omitempty to skip empty fields.
type cleanNetworkConfig struct {
	AllowedDomains []string `json:"allowedDomains,omitempty"`
	DeniedDomains  []string `json:"deniedDomains,omitempty"`
}

// cleanFilesystemConfig is used for JSON output with omitempty to skip empty fields.
type cleanFilesystemConfig struct {
	AllowGitConfig bool `json:"allowGitConfig,omitempty"`
}

// cleanProcessConfig is used for JSON output with omitempty to skip empty fields.
type cleanProcessConfig struct {
	Deny []string `json:"deny,omitempty"`
}

// cleanConfig is used for JSON output with fields in a logical order and
// omitempty so empty sections disappear entirely.
type cleanConfig struct {
	Network    *cleanNetworkConfig    `json:"network,omitempty"`
	Filesystem *cleanFilesystemConfig `json:"filesystem,omitempty"`
	Process    *cleanProcessConfig    `json:"process,omitempty"`
}

// MarshalConfigJSON marshals a hardening config to clean JSON, omitting
// empty sections.
func MarshalConfigJSON(cfg *Config) ([]byte, error) {
	clean := cleanConfig{}

	network := cleanNetworkConfig{
		AllowedDomains: cfg.Network.AllowedDomains,
		DeniedDomains:  cfg.Network.DeniedDomains,
	}
	if !isNetworkEmpty(network) {
		clean.Network = &network
	}

	filesystem := cleanFilesystemConfig{
		AllowGitConfig: cfg.Filesystem.AllowGitConfig,
	}
	if !isFilesystemEmpty(filesystem) {
		clean.Filesystem = &filesystem
	}

	process := cleanProcessConfig{
		Deny: cfg.Process.Deny,
	}
	if !isProcessEmpty(process) {
		clean.Process = &process
	}

	return json.MarshalIndent(clean, "", "  ")
}

func isNetworkEmpty(n cleanNetworkConfig) bool {
	return len(n.AllowedDomains) == 0 && len(n.DeniedDomains) == 0
}

func isFilesystemEmpty(f cleanFilesystemConfig) bool {
	return !f.AllowGitConfig
}

func isProcessEmpty(p cleanProcessConfig) bool {
	return len(p.Deny) == 0
}

// FormatConfigForFile returns config JSON with optional header lines.
func FormatConfigForFile(cfg *Config, opts FileWriteOptions) (string, error) {
	data, err := MarshalConfigJSON(cfg)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, line := range opts.HeaderLines {
		output.WriteString(line)
		output.WriteByte('\n')
	}
	output.Write(data)
	output.WriteByte('\n')

	return output.String(), nil
}

// WriteConfigFile writes a hardening config to a file with optional header lines.
func WriteConfigFile(cfg *Config, path string, opts FileWriteOptions) error {
	output, err := FormatConfigForFile(cfg, opts)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// LoadConfigFile reads a hardening config from path, tolerating JSONC
// comments. A missing file is not an error: it returns a zero-value Config,
// matching the "manifest section may be absent" treatment used elsewhere
// (spec §3).
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return &cfg, nil
}
