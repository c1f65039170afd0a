// Package config loads engine configuration using Viper, following the
// teacher's LoadDMGConfig pattern: defaults, then an optional config
// file, then environment overrides, unmarshaled into a typed struct.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ChunkSize is the copy buffer size the dump controller reads in, chosen
// to amortize per-call overhead on the raw device while still giving the
// cancellation check in the copy loop a reasonable cadence (spec §5:
// "remain responsive to cancellation at least once per chunk (every 8
// MiB)").
const ChunkSize = 8 * 1024 * 1024

// Config holds the engine's user-tunable settings.
type Config struct {
	// CacheDir is the key-cache directory scanned by the key providers
	// (spec §6 "Key cache directory").
	CacheDir string `mapstructure:"cache_dir"`
	// OutputDir is the base directory under which the per-disc output
	// directory (named per OutputTemplate) is created.
	OutputDir string `mapstructure:"output_dir"`
	// OutputTemplate is the placeholder template from spec §4.3
	// ("Output-directory naming").
	OutputTemplate string `mapstructure:"output_template"`
	// RetryAttempts bounds per-file copy attempts (spec §4.6 step 4b
	// default: 2).
	RetryAttempts int `mapstructure:"retry_attempts"`
	// ChunkSizeBytes is the copy buffer size; defaults to ChunkSize.
	ChunkSizeBytes int `mapstructure:"chunk_size_bytes"`
	// LogLevel is parsed by the CLI into a slog.Level.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads engine configuration using Viper, following the teacher's
// LoadDMGConfig pattern: defaults, then an optional config file, then
// environment overrides (prefix PS3DISC_), unmarshaled into Config.
func Load() (*Config, error) {
	viper.SetConfigName("ps3disc")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.ps3disc")
	viper.AddConfigPath("/etc/ps3disc")

	viper.SetDefault("cache_dir", "./keys")
	viper.SetDefault("output_dir", "./dumps")
	viper.SetDefault("output_template", "{product_code} - {title} [{region}]")
	viper.SetDefault("retry_attempts", 2)
	viper.SetDefault("chunk_size_bytes", ChunkSize)
	viper.SetDefault("log_level", "info")

	viper.SetEnvPrefix("PS3DISC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling config: %w", err)
	}
	return &cfg, nil
}
