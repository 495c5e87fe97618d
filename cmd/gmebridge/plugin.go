// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/gmebridge"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin <port> <commit> <branch> <active-node> <selection> [namespace]",
	Short: "Bootstrap a plugin context the way the engine's plugin runner does",
	Long: `Takes the positional arguments the engine passes to a plugin process,
loads the invoked commit and prints the active node and selection.
With --endpoint the port argument is ignored.`,
	Args: cobra.RangeArgs(5, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := gmebridge.ParsePluginArgs(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		endpoint := params.Endpoint
		if cmd.Flags().Changed("endpoint") {
			endpoint = cfg.Endpoint
		}

		ctx := cmd.Context()
		sess, closeFn, err := connectTo(ctx, cfg, endpoint)
		if err != nil {
			return err
		}
		defer closeFn()

		pc, err := gmebridge.NewPluginContext(ctx, sess, params)
		if err != nil {
			return err
		}
		defer pc.Close(ctx)

		core := sess.Core()
		w := cmd.OutOrStdout()
		name, err := core.GetAttribute(ctx, pc.ActiveNode, "name")
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "commit\t%s\n", params.CommitHash)
		fmt.Fprintf(w, "root\t%s\n", pc.Root.Hash)
		fmt.Fprintf(w, "active\t%q\t%v\n", pc.ActiveNode.NodePath, gmebridge.Native(name))
		for _, h := range pc.ActiveSelection {
			fmt.Fprintf(w, "selected\t%q\n", h.NodePath)
		}
		meta, err := pc.META(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "meta\t%d\n", len(meta))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginCmd)
}
