package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the client.
// Zero values mean "unspecified" and are replaced by Default values in main.
type Config struct {
	// ServerURL is the base URL of the remote speech server.
	ServerURL string `json:"server_url" yaml:"server_url" toml:"server_url"`
	// Addr is the uibridge listen address, e.g. "127.0.0.1:8520".
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// PollIntervalMS is the cadence of authoritative model-table polls.
	PollIntervalMS int `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	// ProgressTickMS is the cadence of synthetic progress advancement.
	ProgressTickMS int `json:"progress_tick_ms" yaml:"progress_tick_ms" toml:"progress_tick_ms"`
	// ProgressGraceMS keeps a finished operation's 100% visible.
	ProgressGraceMS int `json:"progress_grace_ms" yaml:"progress_grace_ms" toml:"progress_grace_ms"`
	// RequestTimeoutSecs bounds blocking remote calls; generation streams
	// are exempt.
	RequestTimeoutSecs int `json:"request_timeout_secs" yaml:"request_timeout_secs" toml:"request_timeout_secs"`
	// Speaker is the default speaker preset for generation.
	Speaker string `json:"speaker" yaml:"speaker" toml:"speaker"`
	// LogLevel: debug|info|warn|error.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// CORSOrigins enables CORS on the uibridge for the listed origins.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() Config {
	return Config{
		ServerURL:          "http://127.0.0.1:8321",
		Addr:               "127.0.0.1:8520",
		PollIntervalMS:     2000,
		ProgressTickMS:     500,
		ProgressGraceMS:    1500,
		RequestTimeoutSecs: 120,
		LogLevel:           "info",
	}
}

// PollInterval returns PollIntervalMS as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ProgressTick returns ProgressTickMS as a duration.
func (c Config) ProgressTick() time.Duration {
	return time.Duration(c.ProgressTickMS) * time.Millisecond
}

// ProgressGrace returns ProgressGraceMS as a duration.
func (c Config) ProgressGrace() time.Duration {
	return time.Duration(c.ProgressGraceMS) * time.Millisecond
}

// RequestTimeout returns RequestTimeoutSecs as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge overlays non-zero fields of over onto c and returns the result.
// Used to apply a config file on top of defaults.
func Merge(c, over Config) Config {
	if over.ServerURL != "" {
		c.ServerURL = over.ServerURL
	}
	if over.Addr != "" {
		c.Addr = over.Addr
	}
	if over.PollIntervalMS > 0 {
		c.PollIntervalMS = over.PollIntervalMS
	}
	if over.ProgressTickMS > 0 {
		c.ProgressTickMS = over.ProgressTickMS
	}
	if over.ProgressGraceMS > 0 {
		c.ProgressGraceMS = over.ProgressGraceMS
	}
	if over.RequestTimeoutSecs > 0 {
		c.RequestTimeoutSecs = over.RequestTimeoutSecs
	}
	if over.Speaker != "" {
		c.Speaker = over.Speaker
	}
	if over.LogLevel != "" {
		c.LogLevel = over.LogLevel
	}
	if len(over.CORSOrigins) > 0 {
		c.CORSOrigins = append([]string(nil), over.CORSOrigins...)
	}
	return c
}
