package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete nfsbridge configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags bound into viper (highest priority)
//  2. Environment variables (NFSBRIDGE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each backend type has its own options section (e.g., backend.nfs) and only
// the section matching backend.type is decoded, by CreateBackendFactory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Backend selects the backend implementation and its options
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Connection holds the default connection parameters
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Profiles configures the saved-profile store
	Profiles ProfilesConfig `mapstructure:"profiles" yaml:"profiles"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// BackendConfig selects the backend.
//
// The Type field determines which implementation is used. Only the
// corresponding type-specific section is used.
type BackendConfig struct {
	// Type specifies which backend to use
	// Valid values: nfs, mock
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=nfs mock"`

	// NFS contains protocol client options
	// Only used when Type = "nfs"
	NFS map[string]any `mapstructure:"nfs" yaml:"nfs"`
}

// ConnectionConfig holds defaults for Connect.
type ConnectionConfig struct {
	// Server is the host name or address of the file server
	Server string `mapstructure:"server" yaml:"server"`

	// Export is the exported path to mount
	Export string `mapstructure:"export" yaml:"export" validate:"omitempty,startswith=/"`

	// UID is the AUTH_UNIX user ID presented to the server
	UID int32 `mapstructure:"uid" yaml:"uid" validate:"gte=0"`

	// GID is the AUTH_UNIX group ID presented to the server
	GID int32 `mapstructure:"gid" yaml:"gid" validate:"gte=0"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns on Prometheus collection
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for /metrics
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// ProfilesConfig configures the saved-profile store.
type ProfilesConfig struct {
	// Path is the BadgerDB directory
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NFSBRIDGE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithViper(NewViper(configPath))
}

// LoadWithViper reads configuration through an already configured viper
// instance. Callers use it to bind CLI flags before loading.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	if err := readConfigFile(v); err != nil {
		return nil, err
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

// NewViper returns a viper instance configured for configPath and the
// NFSBRIDGE_ environment.
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	setupViper(v, configPath)
	return v
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: NFSBRIDGE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("NFSBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"backend.type",
		"connection.server", "connection.export", "connection.uid", "connection.gid",
		"metrics.enabled", "metrics.port",
		"profiles.path",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/nfsbridge/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			// A missing config file is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nfsbridge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "nfsbridge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
