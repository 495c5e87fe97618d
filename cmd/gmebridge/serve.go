// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/gmebridge"
	"github.com/luxfi/gmebridge/internal/enginetest"
)

var serveFakeCmd = &cobra.Command{
	Use:   "serve-fake",
	Short: "Run the in-memory fake engine",
	Long: `Runs an in-memory engine holding a small seeded project, listening on the
configured endpoint (any transport scheme). Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		withPlugin, _ := cmd.Flags().GetBool("plugin")
		namespace, _ := cmd.Flags().GetString("namespace")

		opts := []enginetest.Option{
			enginetest.WithLogger(logger),
			enginetest.WithNamespace(namespace),
		}
		if withPlugin {
			opts = append(opts, enginetest.WithPlugin(gmebridge.Map{}))
		}
		engine := enginetest.New(opts...)

		srv, err := gmebridge.Listen(cfg.Endpoint, engine)
		if err != nil {
			return err
		}
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "fake engine listening on %s (master at %s)\n",
			srv.Endpoint(), engine.BranchHash(enginetest.Master))

		errc := make(chan error, 1)
		go func() { errc <- srv.Serve(ctx) }()
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveFakeCmd)
	serveFakeCmd.Flags().Bool("plugin", false, "Accept plugin runtime commands")
	serveFakeCmd.Flags().String("namespace", "", "Default namespace for META")
}
