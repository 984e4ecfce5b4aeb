// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newReplCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate templates interactively",
		Long: `Start an interactive session. Each line is evaluated with the configured
names and chat; end a line with \ to continue on the next one.

Variables set on one line are visible on the next. With --db they also
survive the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			eval := func(input string) string {
				return s.rt.Evaluate(input, s.env)
			}
			printBanner(cmd.OutOrStdout())
			return runREPL(cmd.InOrStdin(), cmd.OutOrStdout(), eval)
		},
	}
}

func printBanner(out io.Writer) {
	fmt.Fprintln(out, "stmacro REPL (Ctrl+D to exit)")
	fmt.Fprintln(out, `End a line with \ to continue it.`)
	fmt.Fprintln(out)
}

// lineJoiner collects backslash-continued lines into one input.
type lineJoiner struct {
	buf  strings.Builder
	open bool
}

func (j *lineJoiner) prompt() string {
	if j.open {
		return "... "
	}
	return ">>> "
}

// add feeds one line and returns the complete input once the last line has
// no trailing backslash.
func (j *lineJoiner) add(line string) (string, bool) {
	if strings.HasSuffix(line, "\\") {
		j.buf.WriteString(strings.TrimSuffix(line, "\\"))
		j.buf.WriteString("\n")
		j.open = true
		return "", false
	}
	if !j.open {
		return line, true
	}
	j.buf.WriteString(line)
	input := j.buf.String()
	j.buf.Reset()
	j.open = false
	return input, true
}

// runBasicREPL handles non-TTY input (piped input)
func runBasicREPL(in io.Reader, out io.Writer, eval func(string) string) error {
	reader := bufio.NewReader(in)
	var lines lineJoiner

	for {
		fmt.Fprint(out, lines.prompt())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			if err == io.EOF {
				return nil
			}
			return err
		}

		input, ok := lines.add(strings.TrimRight(line, "\r\n"))
		if !ok || strings.TrimSpace(input) == "" {
			continue
		}

		if result := eval(input); result != "" {
			fmt.Fprintln(out, result)
		}
	}
}
