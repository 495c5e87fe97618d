// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/luxfi/gmebridge"
	"github.com/luxfi/gmebridge/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "gmebridge",
	Short: "Talk to a graph modeling engine over the bridge protocol",
	Long: `gmebridge sends commands to a running engine and prints the results.
It can also run the built-in fake engine for local experiments.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringP("endpoint", "e", "", "Engine endpoint, e.g. 5555 or tcp://127.0.0.1:5555")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (gmebridge.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := gmebridge.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
		cfg.Metrics.Enabled = cfg.Metrics.Addr != ""
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg gmebridge.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.LogFormat), nil
}

// connect dials the configured engine. The returned func closes the
// session and stops the metrics server.
func connect(ctx context.Context, cmd *cobra.Command) (*gmebridge.Session, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return connectTo(ctx, cfg, cfg.Endpoint)
}

func connectTo(ctx context.Context, cfg gmebridge.Config, endpoint string) (*gmebridge.Session, func(), error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []gmebridge.Option{gmebridge.WithLogger(logger)}

	stopMetrics := func() {}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m, err := gmebridge.NewMetrics(reg, cfg.Metrics.Namespace)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, gmebridge.WithMetrics(m))
		if cfg.Metrics.Addr != "" {
			stopMetrics = serveMetrics(logger, cfg.Metrics.Addr, reg)
		}
	}

	sess, err := gmebridge.Dial(ctx, endpoint, opts...)
	if err != nil {
		stopMetrics()
		return nil, nil, err
	}
	return sess, func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close failed", "error", err)
		}
		stopMetrics()
	}, nil
}

func serveMetrics(logger *slog.Logger, addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() { _ = srv.Close() }
}
