// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package stmacro

import (
	"fmt"
	"log/slog"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/engine"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/macros"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// Runtime is the macro engine with its registry and variable store.
type Runtime struct {
	registry   *macro.Registry
	engine     *engine.Engine
	vars       store.Variables
	logger     *slog.Logger
	maxDepth   int
	noBuiltins bool
	prelude    string
	err        error // First option failure
}

// New creates a runtime with the built-in macros registered.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{}

	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.logger == nil {
		r.logger = diag.Discard()
	}
	if r.vars == nil {
		r.vars = store.NewMemory()
	}

	r.registry = macro.NewRegistry(macro.WithLogger(r.logger))
	if !r.noBuiltins {
		if err := macros.Register(r.registry, r.vars); err != nil {
			r.vars.Close()
			return nil, fmt.Errorf("register built-in macros: %w", err)
		}
	}
	r.engine = engine.New(r.registry,
		engine.WithLogger(r.logger),
		engine.WithVariables(r.vars),
		engine.WithMaxDepth(r.maxDepth),
	)

	prelude := r.prelude
	// A stored prelude overrides the configured one.
	if stored, ok, err := r.vars.Get(store.Global, PreludeVariable); err == nil && ok && stored != "" {
		prelude = stored
	}
	if prelude != "" {
		r.engine.Evaluate(prelude, nil)
	}

	return r, nil
}

// Evaluate resolves every macro in text. It never fails; macros that cannot
// be resolved are left as written.
func (r *Runtime) Evaluate(text string, env *Env) string {
	return r.engine.Evaluate(text, env)
}

// EvaluateAt resolves text as if it started at offset of a larger text.
func (r *Runtime) EvaluateAt(text string, env *Env, offset int) string {
	return r.engine.EvaluateAt(text, env, offset)
}

// ParseDocument parses text without evaluating it.
func (r *Runtime) ParseDocument(text string) ParseResult {
	return r.engine.ParseDocument(text)
}

// UnclosedScopes returns the opening tags in text still waiting for their
// closing tag, innermost last.
func (r *Runtime) UnclosedScopes(text string) []UnclosedScope {
	return r.engine.FindUnclosedScopes(text)
}

// MacroAt returns the innermost macro at offset, or nil.
func (r *Runtime) MacroAt(text string, offset int) *CursorContext {
	return r.engine.MacroAt(text, offset)
}

// HasMacro reports whether name or an alias is registered.
func (r *Runtime) HasMacro(name string) bool {
	return r.registry.Has(name)
}

// GetMacro returns the entry registered under name, which may be an alias.
func (r *Runtime) GetMacro(name string) *Definition {
	return r.registry.Get(name)
}

// GetPrimaryMacro returns the definition for name with aliases resolved.
func (r *Runtime) GetPrimaryMacro(name string) *Definition {
	return r.registry.GetPrimary(name)
}

// GetAllMacros lists registered macros sorted by name.
func (r *Runtime) GetAllMacros(opts ListOptions) []*Definition {
	return r.registry.All(opts)
}

// Categories lists the categories in use.
func (r *Runtime) Categories() []Category {
	return r.registry.Categories()
}

// RegisterMacro adds or replaces a macro. Failures are also logged.
func (r *Runtime) RegisterMacro(name string, opts Options) (*Definition, error) {
	if opts.Source == nil {
		src := macro.CallerSource(1)
		opts.Source = &src
	}
	return r.registry.Register(name, opts)
}

// RegisterMacroAlias adds an alias for a registered macro.
func (r *Runtime) RegisterMacroAlias(target, alias string, visible bool) bool {
	return r.registry.RegisterAlias(target, alias, visible)
}

// UnregisterMacro removes a macro or alias.
func (r *Runtime) UnregisterMacro(name string) bool {
	return r.registry.Unregister(name)
}

// SuggestMacros returns registered names similar to name.
func (r *Runtime) SuggestMacros(name string, limit int) []string {
	return r.registry.Suggest(name, limit)
}

// AddPreProcessor adds a processor that runs before parsing.
func (r *Runtime) AddPreProcessor(p Processor) error {
	return r.engine.AddPreProcessor(p)
}

// AddPostProcessor adds a processor that runs after evaluation.
func (r *Runtime) AddPostProcessor(p Processor) error {
	return r.engine.AddPostProcessor(p)
}

// RemoveProcessor removes a processor by ID.
func (r *Runtime) RemoveProcessor(id string) bool {
	return r.engine.RemoveProcessor(id)
}

// Variables returns the variable store.
func (r *Runtime) Variables() Variables {
	return r.vars
}

// Close releases the variable store.
func (r *Runtime) Close() error {
	return r.vars.Close()
}
