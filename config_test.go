// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "tcp://127.0.0.1:5555", cfg.Endpoint)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	path := writeFile(t, "bridge.yaml", `
endpoint: ws://127.0.0.1:9000/bridge
logLevel: debug
metrics:
  enabled: true
  addr: 127.0.0.1:2112
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9000/bridge", cfg.Endpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "gmebridge", cfg.Metrics.Namespace)
	assert.Equal(t, "127.0.0.1:2112", cfg.Metrics.Addr)
}

func TestLoadConfig_JSON(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	path := writeFile(t, "bridge.json", `{"endpoint":"5600","logFormat":"json"}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "5600", cfg.Endpoint)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeFile(t, "bridge.yaml", "endpoint: tcp://10.0.0.1:5555\n")
	t.Setenv(EnvEndpoint, "grpc://127.0.0.1:7000")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "grpc://127.0.0.1:7000", cfg.Endpoint)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	_, err := LoadConfig(writeFile(t, "bad.yaml", "endpoint: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.json", "{"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "scheme.yaml", "endpoint: carrier-pigeon://coop\n"))
	assert.Error(t, err)
}
