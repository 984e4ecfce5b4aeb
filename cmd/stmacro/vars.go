// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

func newVarsCmd(opts *globalOptions) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Inspect and edit template variables",
		Long: `Inspect and edit the variables templates read with {{getvar}} and
{{getglobalvar}}. Without --db the store only holds the variables seeded
from the config file.`,
	}

	cmd.PersistentFlags().BoolVarP(&global, "global", "g", false, "use global variables instead of local ones")
	scope := func() store.Scope {
		if global {
			return store.Global
		}
		return store.Local
	}

	cmd.AddCommand(newVarsListCmd(opts, scope))
	cmd.AddCommand(newVarsSetCmd(opts, scope))
	cmd.AddCommand(newVarsDeleteCmd(opts, scope))
	cmd.AddCommand(newVarsHistoryCmd(opts, scope))

	return cmd
}

func newVarsListCmd(opts *globalOptions, scope func() store.Scope) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List variables",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			vars, err := s.rt.Variables().List(scope())
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s variables.\n", scope())
				return nil
			}
			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", name, vars[name])
			}
			return tw.Flush()
		},
	}
}

func newVarsSetCmd(opts *globalOptions, scope func() store.Scope) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.rt.Variables().Set(scope(), args[0], args[1])
		},
	}
}

func newVarsDeleteCmd(opts *globalOptions, scope func() store.Scope) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a variable",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.rt.Variables().Delete(scope(), args[0])
		},
	}
}

func newVarsHistoryCmd(opts *globalOptions, scope func() store.Scope) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "Show past values of a variable, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			hs, ok := s.rt.Variables().(store.HistoryStore)
			if !ok {
				return fmt.Errorf("the variable store does not keep history")
			}
			entries, err := hs.GetHistory(scope(), args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s.\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tTIME\tVALUE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Version, e.Ts, e.Value)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of versions (0 for all)")

	return cmd
}
