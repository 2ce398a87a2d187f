// Package config loads this module's deployment configuration from a YAML
// (falling back to JSON) file, with environment-variable overrides and
// sensible defaults — the same load-then-default shape used throughout the
// rest of this module's corpus.
package config

import (
	jsonpkg "encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config is the top-level configuration for either the server or client
// binary; both cmd/ entrypoints load the same shape and ignore the
// sections they don't use.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Server      *ServerConfig  `yaml:"server" json:"server"`
	Client      *ClientConfig  `yaml:"client" json:"client"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig configures the login server.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr" json:"listen_addr"`
	SetupPath      string        `yaml:"setup_path" json:"setup_path"`
	UserStorePath  string        `yaml:"user_store_path" json:"user_store_path"`
	SessionTTL     time.Duration `yaml:"session_ttl" json:"session_ttl"`
	SigningKeyPath string        `yaml:"signing_key_path" json:"signing_key_path"`
	TokenTTL       time.Duration `yaml:"token_ttl" json:"token_ttl"`
}

// ClientConfig configures the login client / orchestrator.
type ClientConfig struct {
	ServerURL        string        `yaml:"server_url" json:"server_url"`
	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout" json:"bootstrap_timeout"`
	Discoverable     bool          `yaml:"discoverable" json:"discoverable"`
}

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// MetricsConfig configures internal/metrics' HTTP exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile reads path, trying YAML first and falling back to JSON,
// applies environment overrides, then fills in defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := jsonpkg.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("config: parse %s (tried YAML and JSON): %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON for a ".json" extension and
// YAML otherwise.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = jsonpkg.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides lets a small number of deployment-critical fields be
// overridden without editing the config file, e.g. in a container.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERDANT_SERVER_LISTEN_ADDR"); v != "" {
		if cfg.Server == nil {
			cfg.Server = &ServerConfig{}
		}
		cfg.Server.ListenAddr = v
	}

	if v := os.Getenv("VERDANT_SERVER_URL"); v != "" {
		if cfg.Client == nil {
			cfg.Client = &ClientConfig{}
		}
		cfg.Client.ServerURL = v
	}

	if v := os.Getenv("VERDANT_LOG_LEVEL"); v != "" {
		if cfg.Logging == nil {
			cfg.Logging = &LoggingConfig{}
		}
		cfg.Logging.Level = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server != nil {
		if cfg.Server.ListenAddr == "" {
			cfg.Server.ListenAddr = ":8443"
		}
		if cfg.Server.SessionTTL == 0 {
			cfg.Server.SessionTTL = 30 * time.Second
		}
		if cfg.Server.TokenTTL == 0 {
			cfg.Server.TokenTTL = 15 * time.Minute
		}
	}

	if cfg.Client != nil && cfg.Client.BootstrapTimeout == 0 {
		cfg.Client.BootstrapTimeout = 5 * time.Second
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

// ParseBool parses s as a boolean, returning fallback when s is empty or
// not a valid boolean. The cmd/ entrypoints do not call it.
func ParseBool(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}

	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}

	return b
}
