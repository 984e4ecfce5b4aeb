// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zhu748/sillytavernapk-sub003/pkg/stmacro"
)

func newMacrosCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macros",
		Short: "Inspect registered macros",
	}

	cmd.AddCommand(newMacrosListCmd(opts))
	cmd.AddCommand(newMacrosShowCmd(opts))
	cmd.AddCommand(newMacrosSearchCmd(opts))

	return cmd
}

func newMacrosListCmd(opts *globalOptions) *cobra.Command {
	var (
		category string
		aliases  bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered macros",
		Example: `  stmacro macros list
  stmacro macros list --category time
  stmacro macros list --aliases`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			defs := s.rt.GetAllMacros(stmacro.ListOptions{
				Category:       stmacro.Category(category),
				ExcludeAliases: !aliases,
			})
			if len(defs) == 0 {
				if category != "" {
					return fmt.Errorf("no macros in category %q (have: %s)", category, joinCategories(s.rt.Categories()))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No macros registered.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tDESCRIPTION")
			for _, d := range defs {
				desc := d.Description
				if d.IsAlias() {
					desc = "alias of " + d.AliasOf
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Category, firstLine(desc))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list one category")
	cmd.Flags().BoolVar(&aliases, "aliases", false, "include aliases")

	return cmd
}

func newMacrosShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the documentation of a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			def := s.rt.GetPrimaryMacro(args[0])
			if def == nil {
				if hint := s.rt.SuggestMacros(args[0], 3); len(hint) > 0 {
					return fmt.Errorf("unknown macro %q (did you mean %s?)", args[0], strings.Join(hint, ", "))
				}
				return fmt.Errorf("unknown macro %q", args[0])
			}
			showMacro(cmd.OutOrStdout(), def)
			return nil
		},
	}
}

func newMacrosSearchCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find macros with a similar name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			names := s.rt.SuggestMacros(args[0], limit)
			if len(names) == 0 {
				fmt.Fprintf(out, "No macros match %q.\n", args[0])
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of results")

	return cmd
}

func showMacro(w io.Writer, d *stmacro.Definition) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Bold)

	fmt.Fprintln(w, title.Sprint(d.Signature()))
	if d.Description != "" {
		fmt.Fprintf(w, "\n%s\n", d.Description)
	}
	fmt.Fprintf(w, "\n%s %s\n", label.Sprint("Category:"), d.Category)
	if d.Returns != "" {
		fmt.Fprintf(w, "%s %s\n", label.Sprint("Returns:"), d.Returns)
	}
	if len(d.Args) > 0 {
		fmt.Fprintln(w, label.Sprint("Arguments:"))
		for _, a := range d.Args {
			line := "  " + a.Name
			if a.Type != "" {
				line += " (" + string(a.Type) + ")"
			}
			if a.Optional {
				line += " optional"
				if a.Default != "" {
					line += fmt.Sprintf(", default %q", a.Default)
				}
			}
			if a.Description != "" {
				line += ": " + a.Description
			}
			fmt.Fprintln(w, line)
		}
	}
	if d.List != nil {
		limit := "unbounded"
		if d.List.Max > 0 {
			limit = fmt.Sprint(d.List.Max)
		}
		fmt.Fprintf(w, "%s min %d, max %s\n", label.Sprint("List:"), d.List.Min, limit)
	}
	var visible []string
	for _, a := range d.Aliases {
		if a.Visible {
			visible = append(visible, a.Name)
		}
	}
	if len(visible) > 0 {
		fmt.Fprintf(w, "%s %s\n", label.Sprint("Aliases:"), strings.Join(visible, ", "))
	}
	if len(d.Examples) > 0 {
		fmt.Fprintln(w, label.Sprint("Examples:"))
		for _, ex := range d.Examples {
			fmt.Fprintf(w, "  %s\n", ex)
		}
	}
	fmt.Fprintf(w, "%s %s\n", label.Sprint("Source:"), d.Source.Name)
}

func joinCategories(cats []stmacro.Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
