// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
)

// Resolver evaluates text as if it appeared at the given global offset.
type Resolver func(text string, offset int) string

// Call is one macro invocation assembled by the evaluator.
type Call struct {
	Name       string
	Args       []string
	ArgOffsets []int // Global offset of each argument's trimmed text
	Flags      Flags
	Scoped     bool

	Raw      string // Full source text of the call, closing tag included
	RawInner string // Text between {{ and }} of the opening tag, arguments resolved

	Start  int // Local span of Raw
	End    int
	Offset int // Global offset of the opening {{

	Env  *Env
	Node *cst.Macro

	// Definition overrides the registry lookup when set.
	Definition *Definition

	Resolve Resolver
}

// Context is what a handler sees.
type Context struct {
	Name       string
	Definition *Definition

	Args        []string
	UnnamedArgs []string
	List        []string // nil unless the macro accepts a list
	Flags       Flags
	Scoped      bool

	Raw      string
	RawInner string
	Env      *Env
	Offset   int

	argOffsets []int
	resolver   Resolver
	warn       func(msg string, args ...any)
	lookup     func(name string) bool
}

// Arg returns unnamed argument i, the declared default when it was omitted,
// or "".
func (c *Context) Arg(i int) string {
	if i >= 0 && i < len(c.UnnamedArgs) {
		return c.UnnamedArgs[i]
	}
	if c.Definition != nil && i >= 0 && i < len(c.Definition.Args) {
		return c.Definition.Args[i].Default
	}
	return ""
}

// ArgOffset returns the global offset of argument i, or the macro offset.
func (c *Context) ArgOffset(i int) int {
	if i >= 0 && i < len(c.argOffsets) {
		return c.argOffsets[i]
	}
	return c.Offset
}

// Resolve evaluates text at the macro's own offset.
func (c *Context) Resolve(text string) string {
	return c.ResolveAt(text, c.Offset)
}

// ResolveAt evaluates text as if it started at the given global offset.
func (c *Context) ResolveAt(text string, offset int) string {
	if c.resolver == nil {
		return text
	}
	return c.resolver(text, offset)
}

// TrimContent dedents and trims scoped content.
func (c *Context) TrimContent(s string) string {
	return TrimScopedContent(s)
}

// Warn logs a runtime warning attributed to this macro.
func (c *Context) Warn(msg string, args ...any) {
	if c.warn != nil {
		c.warn(msg, args...)
	}
}

// HasMacro reports whether name resolves to a registered or dynamic macro.
func (c *Context) HasMacro(name string) bool {
	return c.lookup != nil && c.lookup(name)
}

