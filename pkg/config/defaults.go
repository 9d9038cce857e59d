package config

import (
	"path/filepath"
	"strings"

	"github.com/netiface/nfsbridge/pkg/metrics"
	"github.com/netiface/nfsbridge/pkg/nfsclient"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific options are defaulted when decoded
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyBackendDefaults(&cfg.Backend)
	applyConnectionDefaults(&cfg.Connection)
	applyMetricsDefaults(&cfg.Metrics)
	applyProfilesDefaults(&cfg.Profiles)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "nfs"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.NFS == nil {
		cfg.NFS = make(map[string]any)
	}
}

func applyConnectionDefaults(cfg *ConnectionConfig) {
	if cfg.Export == "" {
		cfg.Export = "/"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = metrics.DefaultPort
	}
}

func applyProfilesDefaults(cfg *ProfilesConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getConfigDir(), "profiles")
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Backend: BackendConfig{
			NFS: map[string]any{
				"timeout":        nfsclient.DefaultTimeout.String(),
				"readdir_count":  nfsclient.DefaultReadDirCount,
				"max_read_size":  nfsclient.DefaultMaxReadSize,
				"max_write_size": nfsclient.DefaultMaxWriteSize,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
