// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/luxfi/gmebridge"
)

var callCmd = &cobra.Command{
	Use:   "call <type> <name> [json-arg...]",
	Short: "Dispatch one command and print its result as JSON",
	Long: `Dispatches one command. <type> is the routing tag (core, project, util,
plugin); every further argument is parsed as JSON, so strings need quotes:

  gmebridge call project getBranchHash '"master"'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, err := gmebridge.ParseTag(args[0])
		if err != nil {
			return err
		}
		callArgs, err := parseArgs(args[2:])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sess, closeFn, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := sess.Call(ctx, tag, args[1], callArgs...)
		if err != nil {
			return err
		}
		out, err := gmebridge.MarshalValue(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func parseArgs(raw []string) ([]gmebridge.Value, error) {
	out := make([]gmebridge.Value, len(raw))
	for i, r := range raw {
		v, err := gmebridge.ParseValue([]byte(r))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List the branches of the project and their head commits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, closeFn, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		branches, err := sess.Project().GetBranches(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(branches))
		for name := range branches {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, branches[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(branchesCmd)
}
