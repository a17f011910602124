// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the ltxscope YAML configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"gopkg.in/yaml.v3"
)

// Config is the complete ltxscope configuration
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Decoder    DecoderConfig    `yaml:"decoder"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Redis      RedisConfig      `yaml:"redis"`
}

// ConnectionConfig selects the uplink source. URL takes precedence over
// MQTT, which takes precedence over Port.
type ConnectionConfig struct {
	Port            string `yaml:"port"`
	Baud            int    `yaml:"baud"`
	URL             string `yaml:"url"`
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTApplication string `yaml:"mqtt_application"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	Username        string `yaml:"username"`
	NoSSLVerify     bool   `yaml:"no_ssl_verify"`
}

// DecoderConfig selects the frame format revision and extra port profiles
type DecoderConfig struct {
	Revision string           `yaml:"revision"`
	Profiles map[int][]string `yaml:"profiles"` // custom sensors on ports 1-9
}

// LogConfig configures logrus. File output is rotated by lumberjack.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// RedisConfig configures publishing of decoded frames
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Format   string `yaml:"format"`
	History  int    `yaml:"history"` // records kept per device
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Baud: 115200,
		},
		Decoder: DecoderConfig{
			Revision: ltx.RevisionV117.Name,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "ltx:uplinks",
			Format:  "json",
			History: 1000,
		},
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection config: %w", err)
	}
	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	return nil
}

// Validate validates connection configuration
func (c *ConnectionConfig) Validate() error {
	if c.Baud < 1 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.URL != "" && !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("url must start with ws:// or wss://, got '%s'", c.URL)
	}
	if c.MQTTBroker != "" {
		valid := false
		for _, scheme := range []string{"tcp://", "ssl://", "tls://", "ws://", "wss://"} {
			if strings.HasPrefix(c.MQTTBroker, scheme) {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("mqtt_broker must start with tcp://, ssl://, tls://, ws:// or wss://, got '%s'", c.MQTTBroker)
		}
	}
	return nil
}

// Validate validates decoder configuration
func (d *DecoderConfig) Validate() error {
	if _, ok := ltx.RevisionByName(d.Revision); !ok {
		return fmt.Errorf("unknown revision '%s' (use v1.17 or legacy)", d.Revision)
	}
	for port, units := range d.Profiles {
		if port < 1 || port > 9 {
			return fmt.Errorf("custom profiles are limited to ports 1-9, got %d", port)
		}
		if len(units) == 0 {
			return fmt.Errorf("profile for port %d has no units", port)
		}
	}
	return nil
}

// Build creates the decoder described by the configuration
func (d *DecoderConfig) Build() (*ltx.Decoder, error) {
	revision, ok := ltx.RevisionByName(d.Revision)
	if !ok {
		return nil, fmt.Errorf("unknown revision '%s'", d.Revision)
	}
	profiles := ltx.DefaultProfiles()
	if len(d.Profiles) > 0 {
		custom, err := ltx.NewProfileTable(d.Profiles)
		if err != nil {
			return nil, err
		}
		profiles = profiles.Merge(custom)
	}
	return ltx.NewDecoderWith(revision, profiles), nil
}

// Validate validates logging configuration
func (l *LogConfig) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(l.Level)] {
		return fmt.Errorf("level must be one of [trace, debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	if l.File != "" && l.MaxSizeMB < 1 {
		return fmt.Errorf("max_size_mb must be at least 1 when logging to a file, got %d", l.MaxSizeMB)
	}
	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Listen == "" {
		return fmt.Errorf("listen address cannot be empty when metrics are enabled")
	}
	return nil
}

// Validate validates redis configuration
func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Addr == "" {
		return fmt.Errorf("addr cannot be empty when redis is enabled")
	}
	if r.Channel == "" {
		return fmt.Errorf("channel cannot be empty when redis is enabled")
	}
	if r.Format != "json" && r.Format != "cbor" {
		return fmt.Errorf("format must be 'json' or 'cbor', got '%s'", r.Format)
	}
	if r.History < 0 {
		return fmt.Errorf("history cannot be negative, got %d", r.History)
	}
	if r.DB < 0 {
		return fmt.Errorf("db cannot be negative, got %d", r.DB)
	}
	return nil
}
