// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
	"github.com/zhu748/sillytavernapk-sub003/pkg/stmacro"
)

func newEvalCmd(opts *globalOptions) *cobra.Command {
	var (
		file        string
		diagnostics bool
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "eval [text]",
		Short: "Evaluate a template",
		Long: `Evaluate a template and print the result.

The template is read from the argument, from --file, or from stdin when
it is piped. Macros that cannot be resolved are printed as written.`,
		Example: `  stmacro eval 'Hello {{user}}, I am {{char}}.'
  stmacro eval -f prompt.txt --diagnostics
  echo '{{roll::2d6}}' | stmacro eval`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args, file)
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			strict = strict || s.cfg.Engine.Strict
			if diagnostics || strict {
				n := printDiagnostics(cmd.ErrOrStderr(), src, s.rt.ParseDocument(src))
				if strict && n > 0 {
					return fmt.Errorf("%d syntax error(s)", n)
				}
			}

			out := s.rt.Evaluate(src, s.env)
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the template from a file")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "print syntax errors to stderr")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on syntax errors (overrides engine.strict)")

	return cmd
}

func newParseCmd(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Print the syntax tree of a template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args, file)
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.rt.ParseDocument(src)
			if err := cst.Fprint(cmd.OutOrStdout(), src, res.Document); err != nil {
				return err
			}
			printDiagnostics(cmd.ErrOrStderr(), src, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the template from a file")

	return cmd
}

func newScopesCmd(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "scopes [text]",
		Short: "List scoped macros that are still waiting for their closing tag",
		Example: `  stmacro scopes '{{if {{char}}}}draft'
  # {{if}} at 1:1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args, file)
			if err != nil {
				return err
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			scopes := s.rt.UnclosedScopes(src)
			if len(scopes) == 0 {
				fmt.Fprintln(out, "No unclosed scopes.")
				return nil
			}
			tag := color.New(color.FgYellow, color.Bold)
			for _, sc := range scopes {
				fmt.Fprintf(out, "%s at %d:%d\n", tag.Sprintf("{{%s}}", sc.Name), sc.Line, sc.Column)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the template from a file")

	return cmd
}

// printDiagnostics writes lexer and parser errors with the offending line
// and a caret. It returns how many errors were printed.
func printDiagnostics(w io.Writer, src string, res stmacro.ParseResult) int {
	lines := strings.Split(src, "\n")
	label := color.New(color.FgRed, color.Bold)
	caret := color.New(color.FgGreen)

	show := func(kind string, line, column int, msg string) {
		fmt.Fprintf(w, "%s %d:%d: %s\n", label.Sprint(kind+":"), line, column, msg)
		if line < 1 || line > len(lines) {
			return
		}
		fmt.Fprintf(w, "  %s\n", lines[line-1])
		fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", max(column-1, 0)), caret.Sprint("^"))
	}

	for _, e := range res.LexErrors {
		show("lex error", e.Line, e.Column, e.Message)
	}
	for _, e := range res.ParseErrors {
		show("parse error", e.Line, e.Column, e.Message)
	}
	return len(res.LexErrors) + len(res.ParseErrors)
}
