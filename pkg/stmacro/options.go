// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package stmacro provides the public API for the macro engine.
package stmacro

import (
	"log/slog"

	"github.com/zhu748/sillytavernapk-sub003/internal/engine"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/parser"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for diagnostics. The default discards them.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithSQLiteVariables keeps variables in a SQLite database at the given path.
func WithSQLiteVariables(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(path)
		if err != nil {
			r.err = err
			return
		}
		r.vars = s
	}
}

// WithMemoryVariables keeps variables in memory (the default).
func WithMemoryVariables() Option {
	return func(r *Runtime) {
		r.vars = store.NewMemory()
	}
}

// WithVariables sets a custom variable store.
func WithVariables(v Variables) Option {
	return func(r *Runtime) {
		r.vars = v
	}
}

// WithMaxDepth sets how deep macros may nest inside arguments.
func WithMaxDepth(n int) Option {
	return func(r *Runtime) {
		r.maxDepth = n
	}
}

// WithoutBuiltins starts with an empty registry.
func WithoutBuiltins() Option {
	return func(r *Runtime) {
		r.noBuiltins = true
	}
}

// WithPrelude sets template text evaluated once on startup, typically to
// seed variables with {{setglobalvar}}. Its output is discarded.
func WithPrelude(source string) Option {
	return func(r *Runtime) {
		r.prelude = source
	}
}

// Env is the context of one evaluation.
type Env = macro.Env

// Names, Character, System and Message are the parts of an Env.
type (
	Names     = macro.Names
	Character = macro.Character
	System    = macro.System
	Message   = macro.Message
)

// Macro registration types.
type (
	Options     = macro.Options
	Definition  = macro.Definition
	Context     = macro.Context
	Handler     = macro.Handler
	ArgDef      = macro.ArgDef
	ListSpec    = macro.ListSpec
	Alias       = macro.Alias
	Category    = macro.Category
	ListOptions = macro.ListOptions
)

// DynamicMacro is a macro that lives for one evaluation.
type DynamicMacro = macro.DynamicMacro

// StringMacro returns a dynamic macro that resolves to text.
func StringMacro(text string) DynamicMacro { return macro.StringMacro(text) }

// HandlerMacro returns a dynamic macro backed by a handler.
func HandlerMacro(h Handler) DynamicMacro { return macro.HandlerMacro(h) }

// DefinitionMacro returns a dynamic macro with full options.
func DefinitionMacro(opts Options) DynamicMacro { return macro.DefinitionMacro(opts) }

// Processor is a pre- or post-processing step.
type Processor = engine.Processor

// ProcessorFunc rewrites text.
type ProcessorFunc = engine.ProcessorFunc

// UnclosedScope is an opening tag without its closing tag.
type UnclosedScope = engine.UnclosedScope

// CursorContext describes the macro under a cursor.
type CursorContext = engine.CursorContext

// ParseResult is the outcome of ParseDocument.
type ParseResult = parser.Result

// Variables is the interface for custom variable stores.
type Variables = store.Variables

// Scope selects local or global variables.
type Scope = store.Scope

// Variable scopes.
const (
	Local  = store.Local
	Global = store.Global
)

// ElseMarker is what a stray {{else}} resolves to before cleanup.
const ElseMarker = macro.ElseMarker

// NormalizeResult converts a handler return value to text.
func NormalizeResult(v any) string { return macro.NormalizeResult(v) }

// TrimScopedContent dedents and trims scoped content.
func TrimScopedContent(s string) string { return macro.TrimScopedContent(s) }
