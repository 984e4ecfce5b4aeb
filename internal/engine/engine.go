// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package engine is the entry point of macro evaluation: it runs the
// pre-processors, parses, walks the document and runs the post-processors.
package engine

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/eval"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/parser"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

// Engine evaluates macro text against a registry.
type Engine struct {
	registry *macro.Registry
	eval     *eval.Evaluator
	logger   *slog.Logger

	mu   sync.RWMutex
	pre  []Processor
	post []Processor
	seq  int
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	vars     store.Variables
	maxDepth int
}

// WithLogger sets the logger for the engine and its evaluator.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithVariables sets the variable store.
func WithVariables(v store.Variables) Option {
	return func(c *config) { c.vars = v }
}

// WithMaxDepth sets the nesting limit.
func WithMaxDepth(n int) Option {
	return func(c *config) { c.maxDepth = n }
}

// New creates an engine with the built-in processors installed.
func New(reg *macro.Registry, opts ...Option) *Engine {
	c := &config{logger: diag.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = diag.Discard()
	}
	e := &Engine{registry: reg, logger: c.logger}
	e.eval = eval.New(reg,
		eval.WithLogger(c.logger),
		eval.WithVariables(c.vars),
		eval.WithMaxDepth(c.maxDepth),
		eval.WithPipeline(e.pipeline),
	)
	e.installBuiltins()
	return e
}

// Registry returns the macro registry.
func (e *Engine) Registry() *macro.Registry { return e.registry }

// Variables returns the variable store.
func (e *Engine) Variables() store.Variables { return e.eval.Variables() }

// Evaluate resolves every macro in input.
func (e *Engine) Evaluate(input string, env *macro.Env) string {
	return e.EvaluateAt(input, env, 0)
}

// EvaluateAt resolves input as if it started at offset of a larger text.
// It never panics; on an unexpected failure the input is returned as is.
func (e *Engine) EvaluateAt(input string, env *macro.Env, offset int) (out string) {
	if input == "" {
		return ""
	}
	frozen, err := env.Freeze(input)
	if err != nil {
		diag.Runtime(e.logger).Warn("invalid dynamic macros skipped", "err", err)
	}

	defer func() {
		if p := recover(); p != nil {
			diag.Internal(e.logger).Error("evaluation failed", "err", fmt.Sprintf("%v", p), "stack", string(debug.Stack()))
			out = input
		}
	}()

	text := e.runProcessors(e.processors(stagePre), input, frozen)

	res := parser.Parse(text)
	for _, le := range res.LexErrors {
		diag.Runtime(e.logger).Warn("lexer error", "line", le.Line, "column", le.Column, "err", le.Message)
	}
	for _, pe := range res.ParseErrors {
		e.logger.Debug("parse error", "line", pe.Line, "column", pe.Column, "err", pe.Message)
	}
	if res.Document == nil {
		return input
	}

	text = e.eval.EvaluateDocument(text, res.Document, frozen, offset, 0)
	return e.runProcessors(e.processors(stagePost), text, frozen)
}

// pipeline serves Context.Resolve: the full processor chain over nested text.
func (e *Engine) pipeline(text string, env *macro.Env, offset, depth int) string {
	if text == "" {
		return ""
	}
	text = e.runProcessors(e.processors(stagePre), text, env)
	text = e.eval.Evaluate(text, env, offset, depth)
	return e.runProcessors(e.processors(stagePost), text, env)
}

// ParseDocument lexes and parses text without evaluating it.
func (e *Engine) ParseDocument(text string) parser.Result {
	return parser.Parse(text)
}

// UnclosedScope is an opening tag that still waits for its closing tag.
type UnclosedScope struct {
	Name   string
	Offset int
	Line   int
	Column int
}

// FindUnclosedScopes returns, innermost last, the opening tags in text that
// need scoped content and have no closing tag yet.
func (e *Engine) FindUnclosedScopes(text string) []UnclosedScope {
	doc := parser.Parse(text).Document
	type open struct {
		primary string
		scope   UnclosedScope
	}
	var stack []open
	for _, m := range doc.Macros() {
		if m.Recovered() || m.Body == nil {
			continue
		}
		def := e.registry.Get(m.Name())
		if def == nil {
			continue
		}
		if m.IsClosing() {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].primary == def.Primary() {
					stack = append(stack[:i], stack[i+1:]...)
					break
				}
			}
			continue
		}
		argc := len(m.Args())
		if argc < def.MinArgs && def.AcceptsScope(argc) {
			stack = append(stack, open{
				primary: def.Primary(),
				scope: UnclosedScope{
					Name:   m.Name(),
					Offset: m.Span.Start,
					Line:   m.Open.Line,
					Column: m.Open.Column,
				},
			})
		}
	}
	out := make([]UnclosedScope, 0, len(stack))
	for _, o := range stack {
		out = append(out, o.scope)
	}
	return out
}

// CursorContext describes the macro under a cursor.
type CursorContext struct {
	Macro      *cst.Macro
	Definition *macro.Definition
	// ArgIndex is the argument holding the cursor, or -1 on the name.
	ArgIndex int
}

// MacroAt returns the innermost macro containing offset, or nil.
func (e *Engine) MacroAt(text string, offset int) *CursorContext {
	m := cst.MacroAt(parser.Parse(text).Document, offset)
	if m == nil {
		return nil
	}
	cc := &CursorContext{Macro: m, ArgIndex: -1}
	if m.Body != nil {
		cc.Definition = e.registry.Get(m.Name())
		for i, a := range m.Args() {
			if offset >= a.Span.Start && offset <= a.Span.End {
				cc.ArgIndex = i
			}
		}
	}
	return cc
}
