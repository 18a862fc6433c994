// Package config loads emberd's server configuration from an optional
// YAML file, layered under hardcoded defaults. It follows the flat
// flag+YAML pattern the teacher uses for its single-process daemons
// rather than a multi-command CLI framework.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/dispatch"
	"github.com/emberplus/emberd/internal/s101"
)

// Config is emberd's complete runtime configuration.
type Config struct {
	// Listen is the TCP address to bind, e.g. ":9000" or "0.0.0.0:9000".
	Listen string `yaml:"listen"`

	// KeepAliveInterval is how often the server sends a keepalive
	// request to each client.
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// RequestTimeout is passed to the dispatcher, which stores it but
	// does not consult it; handling is synchronous and never cancelled.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxPayloadSize caps a single reassembled Ember+ payload, in bytes.
	MaxPayloadSize int `yaml:"max_payload_size"`

	// TreePath, if set, is a YAML tree description loaded at startup via
	// internal/embertree. Empty means start with an empty tree.
	TreePath string `yaml:"tree_path"`

	// LogPath, if set, appends CBOR protocol events to this file via
	// pkg/log.FileLogger. Empty disables protocol-event logging.
	LogPath string `yaml:"log_path"`
}

// Default returns the built-in configuration, matching spec defaults:
// keepalive 10s, request timeout 2000ms.
func Default() Config {
	return Config{
		Listen:            ":9000",
		KeepAliveInterval: connection.DefaultKeepAliveInterval,
		RequestTimeout:    dispatch.DefaultRequestTimeout,
		MaxPayloadSize:    s101.DefaultMaxPayloadSize,
	}
}

// Load reads a YAML file at path and merges it over Default(). A zero
// or missing field in the file keeps the default. An empty path
// returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	cfg.merge(overlay)
	return cfg, nil
}

func (c *Config) merge(o Config) {
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.KeepAliveInterval > 0 {
		c.KeepAliveInterval = o.KeepAliveInterval
	}
	if o.RequestTimeout > 0 {
		c.RequestTimeout = o.RequestTimeout
	}
	if o.MaxPayloadSize > 0 {
		c.MaxPayloadSize = o.MaxPayloadSize
	}
	if o.TreePath != "" {
		c.TreePath = o.TreePath
	}
	if o.LogPath != "" {
		c.LogPath = o.LogPath
	}
}
