// Package config loads the Trova agent configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the agent needs to run.
type Config struct {
	// SocketURL is the platform realtime endpoint (ws:// or wss://).
	SocketURL string `yaml:"socket_url"`
	// APIBaseURL is the platform REST endpoint.
	APIBaseURL string `yaml:"api_base_url"`
	// AuthToken is the platform-issued JWT. Usually supplied via the
	// TROVA_AUTH_TOKEN environment variable rather than the file.
	AuthToken string `yaml:"auth_token,omitempty"`
	// ListenAddr is the localhost UI bridge address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the sqlite file backing draft persistence.
	DBPath string `yaml:"db_path"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig tunes the realtime reconnection policy.
type ReconnectConfig struct {
	Attempts    int           `yaml:"attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SocketURL:  "wss://api.trova.app/socket",
		APIBaseURL: "https://api.trova.app/api",
		ListenAddr: "127.0.0.1:7430",
		DBPath:     "trova.db",
		Reconnect: ReconnectConfig{
			Attempts:    5,
			InitialWait: time.Second,
			MaxWait:     5 * time.Second,
			DialTimeout: 20 * time.Second,
		},
	}
}

// Load reads the YAML config at path, layered over defaults, then applies
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Reconnect.Attempts <= 0 {
		cfg.Reconnect.Attempts = 5
	}
	if cfg.Reconnect.InitialWait <= 0 {
		cfg.Reconnect.InitialWait = time.Second
	}
	if cfg.Reconnect.MaxWait < cfg.Reconnect.InitialWait {
		cfg.Reconnect.MaxWait = 5 * time.Second
	}
	if cfg.Reconnect.DialTimeout <= 0 {
		cfg.Reconnect.DialTimeout = 20 * time.Second
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TROVA_SOCKET_URL"); v != "" {
		cfg.SocketURL = v
	}
	if v := os.Getenv("TROVA_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("TROVA_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("TROVA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TROVA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
}
