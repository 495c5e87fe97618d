// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvEndpoint overrides the configured endpoint when set.
const EnvEndpoint = "GMEBRIDGE_ENDPOINT"

// Config is the client configuration, read from YAML or JSON.
type Config struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint"`
	LogLevel  string        `yaml:"logLevel" json:"logLevel"`
	LogFormat string        `yaml:"logFormat" json:"logFormat"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	// Addr is where the CLI serves /metrics. Empty disables serving.
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Endpoint:  fmt.Sprintf("tcp://127.0.0.1:%d", DefaultPort),
		LogLevel:  "info",
		LogFormat: "text",
		Metrics:   MetricsConfig{Namespace: "gmebridge"},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// The format follows the extension: .json is JSON, anything else YAML.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if strings.ToLower(filepath.Ext(path)) == ".json" {
				if err := json.Unmarshal(data, &cfg); err != nil {
					return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
				}
			} else if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
			}
		}
	}
	if ep := os.Getenv(EnvEndpoint); ep != "" {
		cfg.Endpoint = ep
	}
	return cfg, cfg.Validate()
}

// Validate checks that the endpoint parses.
func (c Config) Validate() error {
	if _, err := ParseEndpoint(c.Endpoint); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
