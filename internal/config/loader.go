// Package config layers the extractor configuration: built-in defaults,
// then a YAML file, then .env and process environment. Command-line flags
// are applied last by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pricehistory-extractor/internal/types"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pricehistory.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL   = "PRICEHISTORY_BASE_URL"
	EnvOutputDir = "PRICEHISTORY_OUTPUT_DIR"
	EnvDatabase  = "PRICEHISTORY_DB"
	EnvSymbols   = "PRICEHISTORY_SYMBOLS"
	EnvHeadless  = "PRICEHISTORY_HEADLESS"
)

// ErrConfigNotFound is returned when an explicitly named configuration
// file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadFile overlays the YAML file at path onto config. Keys absent from the
// file keep their current values.
func LoadFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .pricehistory.yaml in the current directory
// 3. Look for .pricehistory.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// ApplyEnv overrides config from environment variables looked up with getenv.
func ApplyEnv(config *types.Config, getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		config.BaseURL = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		config.OutputDir = v
	}
	if v := getenv(EnvDatabase); v != "" {
		config.DatabasePath = v
	}
	if v := getenv(EnvSymbols); v != "" {
		config.Symbols = SplitSymbols(v)
	}
	if v := getenv(EnvHeadless); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			config.Headless = true
		case "0", "false", "no":
			config.Headless = false
		default:
			return fmt.Errorf("invalid %s value %q", EnvHeadless, v)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the config file (explicit
// path, or discovered by FindConfigFile) and the environment. A .env file
// in the working directory is loaded into the environment first.
func Load(configPath string) (*types.Config, error) {
	_ = godotenv.Load()

	config := types.DefaultConfig()

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		if err := LoadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(config, os.Getenv); err != nil {
		return nil, err
	}
	return config, nil
}

// SplitSymbols parses a comma-separated symbol list, dropping blanks.
func SplitSymbols(s string) []string {
	var symbols []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			symbols = append(symbols, part)
		}
	}
	return symbols
}

// Targets converts symbols to extraction targets.
func Targets(symbols []string) []types.Target {
	targets := make([]types.Target, 0, len(symbols))
	for _, s := range symbols {
		targets = append(targets, types.Target(s))
	}
	return targets
}
