// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package cst defines the concrete syntax tree produced by the parser.
//
// There is one node type per grammar rule: Document, Macro, MacroBody,
// Arguments, Argument, VariableExpr, VariableOperator and VariableValue.
// Every node records the byte span it covers in the parsed text.
package cst

import (
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/lexer"
	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

// Span is a half-open byte range [Start, End) into the parsed text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool { return offset >= s.Start && offset < s.End }

// Text slices the span out of src.
func (s Span) Text(src string) string { return src[s.Start:s.End] }

func spanOf(it lexer.Item) Span { return Span{Start: it.Offset, End: it.End} }

// Node is implemented by every CST node.
type Node interface {
	Pos() Span
}

// Item is a top-level document element: *Text or *Macro.
type Item interface {
	Node
	item()
}

// Part is an element of an argument or variable value: *Leaf or *Macro.
type Part interface {
	Node
	part()
}

// Document is the root node.
type Document struct {
	Items []Item
	Span  Span
}

func (d *Document) Pos() Span { return d.Span }

// Macros returns the top-level macros in source order.
func (d *Document) Macros() []*Macro {
	var out []*Macro
	for _, it := range d.Items {
		if m, ok := it.(*Macro); ok {
			out = append(out, m)
		}
	}
	return out
}

// Text is a run of plaintext, including tokens re-absorbed by recovery.
type Text struct {
	Tokens []lexer.Item
	Span   Span
}

func (t *Text) Pos() Span { return t.Span }
func (t *Text) item()     {}

// Leaf wraps a single token inside an argument or value.
type Leaf struct {
	Token lexer.Item
}

func (l *Leaf) Pos() Span { return spanOf(l.Token) }
func (l *Leaf) part()     {}

// Macro is one {{...}} occurrence. Exactly one of Body and Var is set on a
// well-formed macro.
type Macro struct {
	Open  lexer.Item
	Flags []lexer.Item
	Body  *MacroBody
	Var   *VariableExpr
	Close lexer.Item
	Span  Span
}

func (m *Macro) Pos() Span { return m.Span }
func (m *Macro) item()     {}
func (m *Macro) part()     {}

// Recovered reports whether the parser had to synthesize the closing token.
func (m *Macro) Recovered() bool { return m.Close.Recovered }

// Name returns the macro identifier, or "" for variable expressions.
func (m *Macro) Name() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.Ident.Value
}

// IsComment reports whether the macro is a // comment.
func (m *Macro) IsComment() bool {
	return m.Body != nil && m.Body.Ident.Token == token.COMMENT
}

// FlagSymbols returns the flag symbols in source order.
func (m *Macro) FlagSymbols() []string {
	out := make([]string, 0, len(m.Flags))
	for _, f := range m.Flags {
		out = append(out, f.Value)
	}
	return out
}

// HasFlag reports whether the flag symbol is present.
func (m *Macro) HasFlag(symbol byte) bool {
	for _, f := range m.Flags {
		if f.Value[0] == symbol {
			return true
		}
	}
	return false
}

// IsClosing reports whether this is a closing tag such as {{/if}}.
func (m *Macro) IsClosing() bool {
	return m.HasFlag(token.FlagClosingBlock)
}

// Args returns the macro arguments, or nil.
func (m *Macro) Args() []*Argument {
	if m.Body == nil || m.Body.Args == nil {
		return nil
	}
	return m.Body.Args.List
}

// Nested returns the macros directly nested in arguments or the variable
// value, in source order.
func (m *Macro) Nested() []*Macro {
	var out []*Macro
	for _, a := range m.Args() {
		out = append(out, a.Macros()...)
	}
	if m.Var != nil && m.Var.Value != nil {
		out = append(out, m.Var.Value.Macros()...)
	}
	return out
}

// MacroBody is the identifier (or // marker) and its arguments.
type MacroBody struct {
	Ident lexer.Item
	Args  *Arguments
	Span  Span
}

func (b *MacroBody) Pos() Span { return b.Span }

// ArgForm distinguishes the two argument syntaxes.
type ArgForm int

const (
	// FormList is the ::a::b::c form.
	FormList ArgForm = iota
	// FormLegacy is the single-argument form, {{name arg}} or {{name: arg}}.
	FormLegacy
)

func (f ArgForm) String() string {
	if f == FormLegacy {
		return "legacy"
	}
	return "list"
}

// Arguments holds the parsed argument list.
type Arguments struct {
	Form       ArgForm
	Separators []lexer.Item // :: tokens, or the optional legacy colon
	List       []*Argument
	Span       Span
}

func (a *Arguments) Pos() Span { return a.Span }

// Argument is the raw text between separators, with nested macros.
type Argument struct {
	Parts []Part
	Span  Span
}

func (a *Argument) Pos() Span { return a.Span }

// Macros returns the nested macros of the argument.
func (a *Argument) Macros() []*Macro {
	return macrosOf(a.Parts)
}

// Trimmed returns the argument text without surrounding whitespace and the
// span of that trimmed text.
func (a *Argument) Trimmed(src string) (string, Span) {
	return trimSpan(src, a.Span)
}

// VariableExpr is the .name / $name shorthand.
type VariableExpr struct {
	Scope lexer.Item
	Ident lexer.Item
	Op    *VariableOperator
	Value *VariableValue
	Span  Span
}

func (v *VariableExpr) Pos() Span { return v.Span }

// Global reports whether the expression addresses the global scope.
func (v *VariableExpr) Global() bool { return v.Scope.Value == string(rune(token.ScopeGlobal)) }

// Name returns the variable name.
func (v *VariableExpr) Name() string { return v.Ident.Value }

// Operator returns the operator symbol, or "" for a plain read.
func (v *VariableExpr) Operator() string {
	if v.Op == nil {
		return ""
	}
	return v.Op.Op.Value
}

// VariableOperator is the operator token of a variable expression.
type VariableOperator struct {
	Op   lexer.Item
	Span Span
}

func (o *VariableOperator) Pos() Span { return o.Span }

// VariableValue is the right-hand side of a variable expression.
type VariableValue struct {
	Parts []Part
	Span  Span
}

func (v *VariableValue) Pos() Span { return v.Span }

// Macros returns the nested macros of the value.
func (v *VariableValue) Macros() []*Macro {
	return macrosOf(v.Parts)
}

// Trimmed returns the value text without surrounding whitespace and the
// span of that trimmed text.
func (v *VariableValue) Trimmed(src string) (string, Span) {
	return trimSpan(src, v.Span)
}

func macrosOf(parts []Part) []*Macro {
	var out []*Macro
	for _, p := range parts {
		if m, ok := p.(*Macro); ok {
			out = append(out, m)
		}
	}
	return out
}

const spaceChars = " \t\r\n\f\v"

func trimSpan(src string, s Span) (string, Span) {
	raw := s.Text(src)
	left := len(raw) - len(strings.TrimLeft(raw, spaceChars))
	trimmed := strings.TrimRight(raw[left:], spaceChars)
	start := s.Start + left
	return trimmed, Span{Start: start, End: start + len(trimmed)}
}
