// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zhu748/sillytavernapk-sub003/internal/config"
	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/pkg/stmacro"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "stmacro",
		Short: "Evaluate {{macro}} templates",
		Long: `stmacro expands {{macro}} templates the way chat front ends do.

Names, character card fields, the chat transcript and initial variables
come from the config file. Variables persist across runs with --db.

Get started by running: stmacro init`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ~/.config/stmacro/config.yml)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite variable store (default: in memory)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default: warn)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newParseCmd(opts))
	cmd.AddCommand(newScopesCmd(opts))
	cmd.AddCommand(newMacrosCmd(opts))
	cmd.AddCommand(newVarsCmd(opts))
	cmd.AddCommand(newReplCmd(opts))

	return cmd
}

func (o *globalOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultConfigPath()
}

// session is a loaded config with the runtime and env built from it.
type session struct {
	cfg *config.Config
	rt  *stmacro.Runtime
	env *stmacro.Env
}

// open loads the config, applies flag overrides and starts a runtime. Logs
// go to the command's stderr.
func (o *globalOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadWithEnv(o.path())
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DB = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Engine.LogLevel = o.logLevel
	}
	if cfg.Engine.LogLevel == "" {
		cfg.Engine.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := diag.ParseLevel(cfg.Engine.LogLevel)
	if err != nil {
		return nil, err
	}

	opts := []stmacro.Option{
		stmacro.WithLogger(diag.NewLogger(cmd.ErrOrStderr(), level)),
		stmacro.WithMaxDepth(cfg.Engine.MaxDepth),
	}
	if cfg.DB != "" {
		opts = append(opts, stmacro.WithSQLiteVariables(cfg.DB))
	}
	rt, err := stmacro.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Seed(rt.Variables()); err != nil {
		rt.Close()
		return nil, err
	}
	return &session{cfg: cfg, rt: rt, env: cfg.Env()}, nil
}

func (s *session) Close() error {
	return s.rt.Close()
}

// readSource picks the template text from the argument, --file or piped
// stdin, in that order.
func readSource(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" && len(args) > 0 {
		return "", errors.New("pass either text or --file, not both")
	}
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	case len(args) > 0:
		return args[0], nil
	case !isTerminal(cmd.InOrStdin()):
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return "", errors.New("no input: pass text, --file or pipe it on stdin")
}

// isTerminal reports whether r is an interactive character device.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
