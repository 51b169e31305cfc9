// FILE: src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// LoadWithCLI merges defaults, the TOML file, EMULOG_* env and CLI args, in
// increasing precedence.
func LoadWithCLI(cliArgs []string) (*Config, error) {
	return load(GetConfigPath(), cliArgs)
}

func load(configPath string, cliArgs []string) (*Config, error) {
	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("EMULOG_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// Missing config file is fine, defaults apply
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan("", finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "EMULOG_" + env
	return env
}

// GetConfigPath resolves EMULOG_CONFIG_FILE and EMULOG_CONFIG_DIR, falling
// back to ~/.config/emulog.toml
func GetConfigPath() string {
	if configFile := os.Getenv("EMULOG_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("EMULOG_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("EMULOG_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "emulog.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "emulog.toml")
	}

	return "emulog.toml"
}
