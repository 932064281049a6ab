// Package config loads nxtree settings from a YAML file and NXTREE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. NXTREE_LOGGING_LEVEL.
const EnvPrefix = "NXTREE"

// Config is the complete nxtree configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (NXTREE_*)
//  2. Configuration file
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Locking LockingConfig `mapstructure:"locking"`
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR, in any case.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// StorageConfig controls how new datasets are stored.
type StorageConfig struct {
	Compression CompressionConfig `mapstructure:"compression"`

	// OffsetSize and LengthSize are the address and length widths, in
	// bytes, of newly created files.
	OffsetSize int `mapstructure:"offset_size" validate:"oneof=2 4 8"`
	LengthSize int `mapstructure:"length_size" validate:"oneof=2 4 8"`
}

// CompressionConfig selects the filters of chunked datasets. Codec
// specific settings live in the section named after the codec and are
// decoded when the codec is selected.
type CompressionConfig struct {
	Codec      string `mapstructure:"codec" validate:"required,oneof=none deflate gzip zstd lz4"`
	Shuffle    bool   `mapstructure:"shuffle"`
	Fletcher32 bool   `mapstructure:"fletcher32"`

	Deflate map[string]any `mapstructure:"deflate"`
	Zstd    map[string]any `mapstructure:"zstd"`
}

// LockingConfig controls advisory locking of container files.
type LockingConfig struct {
	// Mode is advisory or none.
	Mode string `mapstructure:"mode" validate:"required,oneof=advisory none"`
}

// Load reads configuration from configPath, or from the default location
// when configPath is empty, then applies the environment and defaults and
// validates the result. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper knows about.
	for key, value := range defaultValues {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// ConfigDir returns $XDG_CONFIG_HOME/nxtree, falling back to
// ~/.config/nxtree and then the current directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nxtree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nxtree")
}
