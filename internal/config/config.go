// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config provides configuration management for stmacro.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// Config holds the stmacro configuration: the values macros read, the
// initial variables and the engine settings.
type Config struct {
	User          string `yaml:"user,omitempty"`
	Char          string `yaml:"char,omitempty"`
	Group         string `yaml:"group,omitempty"`
	GroupNotMuted string `yaml:"group_not_muted,omitempty"`
	NotChar       string `yaml:"not_char,omitempty"`
	ChatID        string `yaml:"chat_id,omitempty"`

	Character Character `yaml:"character,omitempty"`
	Model     string    `yaml:"model,omitempty"`
	MaxPrompt int       `yaml:"max_prompt,omitempty"`
	Chat      []Message `yaml:"chat,omitempty"`

	// Macros are per-evaluation string macros.
	Macros    map[string]string `yaml:"macros,omitempty"`
	Variables Variables         `yaml:"variables,omitempty"`

	Engine Engine `yaml:"engine,omitempty"`
	// DB is the SQLite variable store path. Empty keeps variables in memory.
	DB string `yaml:"db,omitempty"`
}

// Character holds character-card fields.
type Character struct {
	Description  string `yaml:"description,omitempty"`
	Personality  string `yaml:"personality,omitempty"`
	Scenario     string `yaml:"scenario,omitempty"`
	Persona      string `yaml:"persona,omitempty"`
	MesExamples  string `yaml:"mes_examples,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	Prompt       string `yaml:"prompt,omitempty"`
	Instruction  string `yaml:"instruction,omitempty"`
	DepthPrompt  string `yaml:"depth_prompt,omitempty"`
	CreatorNotes string `yaml:"creator_notes,omitempty"`
	Version      string `yaml:"version,omitempty"`
}

// Message is one chat transcript entry.
type Message struct {
	Name     string    `yaml:"name,omitempty"`
	Text     string    `yaml:"text"`
	Role     string    `yaml:"role,omitempty"` // user, char or system
	SwipeID  int       `yaml:"swipe_id,omitempty"`
	Swipes   int       `yaml:"swipes,omitempty"`
	SendDate time.Time `yaml:"send_date,omitempty"`
}

// Variables are seeded into the store before evaluation.
type Variables struct {
	Local  map[string]string `yaml:"local,omitempty"`
	Global map[string]string `yaml:"global,omitempty"`
}

// Engine holds evaluation settings.
type Engine struct {
	MaxDepth int    `yaml:"max_depth,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
	// Strict makes the CLI fail on syntax errors instead of evaluating
	// best effort.
	Strict bool `yaml:"strict,omitempty"`
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Engine.MaxDepth < 0 {
		return errors.New("engine.max_depth must not be negative")
	}
	if _, err := diag.ParseLevel(c.Engine.LogLevel); err != nil {
		return fmt.Errorf("engine.log_level: %w", err)
	}
	if c.MaxPrompt < 0 {
		return errors.New("max_prompt must not be negative")
	}
	for name := range c.Macros {
		if !macro.ValidName(name) {
			return fmt.Errorf("macros: invalid macro name %q", name)
		}
	}
	for i, m := range c.Chat {
		switch m.Role {
		case "", "user", "char", "system":
		default:
			return fmt.Errorf("chat[%d]: unknown role %q", i, m.Role)
		}
		if m.SwipeID < 0 || m.Swipes < 0 {
			return fmt.Errorf("chat[%d]: swipe counts must not be negative", i)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables override existing values only if set and non-empty.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("STMACRO_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("STMACRO_CHAR"); v != "" {
		c.Char = v
	}
	if v := os.Getenv("STMACRO_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("STMACRO_LOG_LEVEL"); v != "" {
		c.Engine.LogLevel = v
	}
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stmacro", "config.yml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".stmacro", "config.yml")
	}

	return filepath.Join(home, ".config", "stmacro", "config.yml")
}

// Save writes the configuration to the specified path.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load reads the configuration from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnv loads configuration from file and overrides with environment
// variables. A missing file yields an empty configuration; any other read
// or parse failure is returned.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}

	cfg.LoadFromEnv()
	return cfg, nil
}

// Env builds the macro environment described by the configuration.
func (c *Config) Env() *macro.Env {
	env := &macro.Env{
		Names: macro.Names{
			User:          c.User,
			Char:          c.Char,
			Group:         c.Group,
			GroupNotMuted: c.GroupNotMuted,
			NotChar:       c.NotChar,
		},
		Character: macro.Character{
			Description:    c.Character.Description,
			Personality:    c.Character.Personality,
			Scenario:       c.Character.Scenario,
			Persona:        c.Character.Persona,
			MesExamples:    c.Character.MesExamples,
			MesExamplesRaw: c.Character.MesExamples,
			SystemPrompt:   c.Character.SystemPrompt,
			Prompt:         c.Character.Prompt,
			Instruction:    c.Character.Instruction,
			DepthPrompt:    c.Character.DepthPrompt,
			CreatorNotes:   c.Character.CreatorNotes,
			Version:        c.Character.Version,
		},
		System:                 macro.System{Model: c.Model, MaxPrompt: c.MaxPrompt},
		ChatID:                 c.ChatID,
		FirstIncludedMessageID: -1,
	}
	if len(c.Chat) > 0 {
		env.FirstIncludedMessageID = 0
	}
	for _, m := range c.Chat {
		env.Chat = append(env.Chat, macro.Message{
			Name:       m.Name,
			Text:       m.Text,
			IsUser:     strings.EqualFold(m.Role, "user"),
			IsSystem:   strings.EqualFold(m.Role, "system"),
			SwipeID:    m.SwipeID,
			SwipeCount: m.Swipes,
			SendDate:   m.SendDate,
		})
	}
	if len(c.Macros) > 0 {
		env.Dynamic = make(map[string]macro.DynamicMacro, len(c.Macros))
		for name, text := range c.Macros {
			env.Dynamic[name] = macro.StringMacro(text)
		}
	}
	return env
}

// Seed writes the configured variables that v does not hold yet.
func (c *Config) Seed(v store.Variables) error {
	if err := store.Seed(v, store.Local, c.Variables.Local); err != nil {
		return fmt.Errorf("failed to seed local variables: %w", err)
	}
	if err := store.Seed(v, store.Global, c.Variables.Global); err != nil {
		return fmt.Errorf("failed to seed global variables: %w", err)
	}
	return nil
}
