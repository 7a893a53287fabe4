package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Supported storage backends.
const (
	BackendFileSystem = "filesystem"
	BackendPostgres   = "postgres"
	BackendMemory     = "memory"
)

// Config represents the top-level configuration for playhead.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Merge   MergeConfig   `koanf:"merge"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// StorageConfig selects and configures the durable snapshot backend.
type StorageConfig struct {
	Backend      string `koanf:"backend"` // filesystem | postgres | memory
	DataDir      string `koanf:"data_dir"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// MergeConfig holds settings for the periodic merge pass.
type MergeConfig struct {
	Enabled      bool   `koanf:"enabled"`
	CronInterval string `koanf:"cron_interval"` // parsed and validated on startup
}

// Load loads the configuration from the given file path and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"storage.backend":         BackendFileSystem,
		"storage.data_dir":        "./data",
		"storage.dsn":             "",
		"storage.max_open_conns":  25,
		"storage.max_idle_conns":  25,
		"storage.auto_migrate":    true,
		"merge.enabled":           true,
		"merge.cron_interval":     "2m",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// PLAYHEAD_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("PLAYHEAD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PLAYHEAD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be positive, got %d", c.Server.MaxBodySizeMB)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Storage.Backend {
	case BackendFileSystem:
		if strings.TrimSpace(c.Storage.DataDir) == "" {
			return fmt.Errorf("storage.data_dir is required for the filesystem backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q (must be filesystem, postgres, or memory)", c.Storage.Backend)
	}

	interval, err := time.ParseDuration(c.Merge.CronInterval)
	if err != nil {
		return fmt.Errorf("invalid merge.cron_interval %q: %w", c.Merge.CronInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("merge.cron_interval must be positive, got %q", c.Merge.CronInterval)
	}

	return nil
}
