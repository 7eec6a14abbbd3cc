// Package config defines the application configuration and the saved
// connection profiles.
//
// Separated from cmd to allow other packages (api, session, tui) to
// depend on config without importing Cobra.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
)

const (
	// AppName names the home directory and the env var prefix.
	AppName = "askdata"

	DefaultServerURL   = "http://localhost:5000"
	DefaultMaxUploadMB = 50
	DefaultRetryMax    = 2

	envPrefix = "ASKDATA_"
)

// Config holds all application settings.
type Config struct {
	ServerURL   string `koanf:"server_url"`
	RowsPerPage int    `koanf:"rows_per_page"`
	MaxUploadMB int    `koanf:"max_upload_mb"`
	StatePath   string `koanf:"state_path"`
	LogLevel    string `koanf:"log_level"`
	RetryMax    int    `koanf:"retry_max"`
	Markdown    bool   `koanf:"markdown"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `koanf:"-"`
}

// HomeDir returns ~/.askdata.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+AppName), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// LogDir returns the directory applog writes to.
func LogDir() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// MaxUploadBytes is the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate checks values that would otherwise fail later at run time.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url must not be empty")
	}
	if c.RowsPerPage == 0 {
		c.RowsPerPage = explorer.DefaultRowsPerPage
	}
	if !slices.Contains(explorer.PageSizes, c.RowsPerPage) {
		return fmt.Errorf("rows_per_page must be one of %v, got %d", explorer.PageSizes, c.RowsPerPage)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must not be negative, got %d", c.RetryMax)
	}
	return nil
}

func defaults() map[string]interface{} {
	statePath := ""
	if dir, err := HomeDir(); err == nil {
		statePath = filepath.Join(dir, "state.db")
	}
	return map[string]interface{}{
		"server_url":    DefaultServerURL,
		"rows_per_page": explorer.DefaultRowsPerPage,
		"max_upload_mb": DefaultMaxUploadMB,
		"state_path":    statePath,
		"log_level":     "info",
		"retry_max":     DefaultRetryMax,
		"markdown":      true,
	}
}

// Load reads configuration from defaults, the config file, environment
// variables and flags. Precedence (highest to lowest): flags > env vars >
// config file > defaults. An empty cfgFile means ~/.askdata/config.yaml
// when it exists.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		if dir, err := HomeDir(); err == nil {
			candidate := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
			}
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment: ASKDATA_SERVER_URL -> server_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set; kebab-case maps to snake_case.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "server" {
				key = "server_url"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	cfg.ConfigFile = cfgFile

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
