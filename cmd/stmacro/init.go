// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/zhu748/sillytavernapk-sub003/internal/config"
)

type initOptions struct {
	user    string
	char    string
	db      string
	level   string
	force   bool
	noInput bool
}

func newInitCmd(global *globalOptions) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the stmacro configuration",
		Long: `Create the stmacro configuration file.

This command asks for the user and character names, the variable store
and the log level, then writes ~/.config/stmacro/config.yml. Character
card fields and the chat transcript can be added to the file by hand.`,
		Example: `  # Interactive setup
  stmacro init

  # Non-interactive
  stmacro init --user Alice --char Bob --db vars.db --no-input`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.db = global.dbPath
			opts.level = global.logLevel
			return runInit(cmd.OutOrStdout(), global.path(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "the user's name")
	cmd.Flags().StringVar(&opts.char, "char", "", "the character's name")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config without asking")
	cmd.Flags().BoolVar(&opts.noInput, "no-input", false, "write the config from flags without prompting")

	return cmd
}

func runInit(out io.Writer, configPath string, opts *initOptions) error {
	if _, err := os.Stat(configPath); err == nil && !opts.force {
		if opts.noInput {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		var overwrite bool
		err := huh.NewConfirm().
			Title("Configuration already exists").
			Description(fmt.Sprintf("Overwrite %s?", configPath)).
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(out, "Initialization cancelled.")
			return nil
		}
	}

	cfg := &config.Config{
		User:   opts.user,
		Char:   opts.char,
		DB:     opts.db,
		Engine: config.Engine{LogLevel: opts.level},
	}
	if cfg.Engine.LogLevel == "" {
		cfg.Engine.LogLevel = "warn"
	}

	if !opts.noInput {
		if err := newInitForm(cfg).Run(); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	fmt.Fprintln(out, "\nTry running:")
	fmt.Fprintln(out, "  stmacro eval 'Hello {{user}}, I am {{char}}.'")
	fmt.Fprintln(out, "  stmacro macros list")
	return nil
}

func newInitForm(cfg *config.Config) *huh.Form {
	required := func(what string) func(string) error {
		return func(s string) error {
			if s == "" {
				return fmt.Errorf("%s is required", what)
			}
			return nil
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User name").
				Description("Replaces {{user}}").
				Placeholder("User").
				Value(&cfg.User).
				Validate(required("user name")),

			huh.NewInput().
				Title("Character name").
				Description("Replaces {{char}}").
				Placeholder("Assistant").
				Value(&cfg.Char).
				Validate(required("character name")),

			huh.NewInput().
				Title("Variable store (optional)").
				Description("SQLite file that keeps variables between runs; empty keeps them in memory").
				Placeholder("~/.local/share/stmacro/vars.db").
				Value(&cfg.DB),

			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("warn", "info", "debug", "error")...).
				Value(&cfg.Engine.LogLevel),
		),
	)
}
