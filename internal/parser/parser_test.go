// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhu748/sillytavernapk-sub003/internal/cst"
)

func parseOne(t *testing.T, src string) *cst.Macro {
	t.Helper()
	res := Parse(src)
	macros := res.Document.Macros()
	require.Len(t, macros, 1)
	return macros[0]
}

func argTexts(src string, m *cst.Macro) []string {
	var out []string
	for _, a := range m.Args() {
		s, _ := a.Trimmed(src)
		out = append(out, s)
	}
	return out
}

func TestParseDocumentItems(t *testing.T) {
	src := "Hello {{user}}!"
	res := Parse(src)
	require.False(t, res.HasErrors())
	require.Len(t, res.Document.Items, 3)

	text, ok := res.Document.Items[0].(*cst.Text)
	require.True(t, ok)
	assert.Equal(t, "Hello ", text.Span.Text(src))

	m, ok := res.Document.Items[1].(*cst.Macro)
	require.True(t, ok)
	assert.Equal(t, "user", m.Name())
	assert.Equal(t, "{{user}}", m.Span.Text(src))
	assert.False(t, m.Recovered())
	assert.Nil(t, m.Args())

	assert.Equal(t, cst.Span{Start: 0, End: len(src)}, res.Document.Span)
}

func TestParseArgumentForms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		form cst.ArgForm
		args []string
	}{
		{name: "list", src: "{{setvar::x::5}}", form: cst.FormList, args: []string{"x", "5"}},
		{name: "list empty", src: "{{name::}}", form: cst.FormList, args: []string{""}},
		{name: "list trailing empty", src: "{{name::a::}}", form: cst.FormList, args: []string{"a", ""}},
		{name: "list after space", src: "{{name ::a}}", form: cst.FormList, args: []string{"a"}},
		{name: "list keeps spaces inside", src: "{{name:: a b ::c}}", form: cst.FormList, args: []string{"a b", "c"}},
		{name: "legacy space", src: "{{getvar myvar}}", form: cst.FormLegacy, args: []string{"myvar"}},
		{name: "legacy colon", src: "{{time:UTC+2}}", form: cst.FormLegacy, args: []string{"UTC+2"}},
		{name: "legacy keeps colons", src: "{{name: a:b}}", form: cst.FormLegacy, args: []string{"a:b"}},
		{name: "legacy empty after colon", src: "{{name:}}", form: cst.FormLegacy, args: []string{""}},
		{name: "quotes and equals", src: `{{name::a="b c"}}`, form: cst.FormList, args: []string{`a="b c"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := parseOne(t, tt.src)
			require.False(t, m.Recovered())
			require.NotNil(t, m.Body.Args)
			assert.Equal(t, tt.form, m.Body.Args.Form)
			assert.Equal(t, tt.args, argTexts(tt.src, m))
		})
	}
}

func TestParseDoubleColonAfterLegacyArgument(t *testing.T) {
	for _, src := range []string{"{{getvar myvar::x}}", "{{name: a::b}}"} {
		t.Run(src, func(t *testing.T) {
			res := Parse(src)
			require.Len(t, res.Document.Items, 1)
			m, ok := res.Document.Items[0].(*cst.Macro)
			require.True(t, ok)
			assert.True(t, m.Recovered())
			assert.Equal(t, src, m.Span.Text(src))
			require.Len(t, res.ParseErrors, 1)
			assert.Contains(t, res.ParseErrors[0].Message, "list arguments must start with '::'")
		})
	}

	// Nested macros keep their own separators.
	m := parseOne(t, "{{getvar {{echo::x}}}}")
	assert.False(t, m.Recovered())
	assert.Equal(t, cst.FormLegacy, m.Body.Args.Form)
}

func TestParseNoArgumentsWithTrailingSpace(t *testing.T) {
	m := parseOne(t, "{{ user  }}")
	assert.Equal(t, "user", m.Name())
	assert.Empty(t, m.Args())
}

func TestParseNestedArguments(t *testing.T) {
	src := "{{a::{{b::c}}::d}}"
	m := parseOne(t, src)
	require.Len(t, m.Args(), 2)
	nested := m.Args()[0].Macros()
	require.Len(t, nested, 1)
	assert.Equal(t, "b", nested[0].Name())
	assert.Equal(t, "{{b::c}}", nested[0].Span.Text(src))
	assert.Equal(t, []string{"{{b::c}}", "d"}, argTexts(src, m))
	assert.Len(t, m.Nested(), 1)
}

func TestParseFlags(t *testing.T) {
	m := parseOne(t, "{{/if}}")
	assert.True(t, m.IsClosing())
	assert.Equal(t, "if", m.Name())

	m = parseOne(t, "{{#if x}}")
	assert.True(t, m.HasFlag('#'))
	assert.False(t, m.IsClosing())
	assert.Equal(t, []string{"#"}, m.FlagSymbols())

	m = parseOne(t, "{{!?~>user}}")
	assert.Equal(t, []string{"!", "?", "~", ">"}, m.FlagSymbols())
}

func TestParseComment(t *testing.T) {
	src := "{{// anything::here}}"
	m := parseOne(t, src)
	assert.True(t, m.IsComment())
	assert.Equal(t, "//", m.Name())
	assert.Equal(t, []string{"anything::here"}, argTexts(src, m))

	m = parseOne(t, "{{///}}")
	assert.True(t, m.IsComment())
	assert.True(t, m.IsClosing())
}

func TestParseVariableExpressions(t *testing.T) {
	tests := []struct {
		src    string
		name   string
		global bool
		op     string
		value  string
	}{
		{src: "{{.counter}}", name: "counter"},
		{src: "{{$score}}", name: "score", global: true},
		{src: "{{.counter++}}", name: "counter", op: "++"},
		{src: "{{.counter = 5}}", name: "counter", op: "=", value: "5"},
		{src: "{{$x ?? none at all }}", name: "x", global: true, op: "??", value: "none at all"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			m := parseOne(t, tt.src)
			require.False(t, m.Recovered())
			require.NotNil(t, m.Var)
			assert.Nil(t, m.Body)
			assert.Equal(t, tt.name, m.Var.Name())
			assert.Equal(t, tt.global, m.Var.Global())
			assert.Equal(t, tt.op, m.Var.Operator())
			if tt.value != "" {
				got, _ := m.Var.Value.Trimmed(tt.src)
				assert.Equal(t, tt.value, got)
			}
		})
	}
}

func TestParseVariableValueWithNestedMacro(t *testing.T) {
	src := "{{.greeting = hi {{user}}}}"
	m := parseOne(t, src)
	require.NotNil(t, m.Var.Value)
	nested := m.Var.Value.Macros()
	require.Len(t, nested, 1)
	assert.Equal(t, "user", nested[0].Name())
	got, _ := m.Var.Value.Trimmed(src)
	assert.Equal(t, "hi {{user}}", got)
}

func TestParseRecovery(t *testing.T) {
	tests := []struct {
		name string
		src  string
		raw  string
	}{
		{name: "unterminated", src: "{{user", raw: "{{user"},
		{name: "empty", src: "{{}}", raw: "{{}}"},
		{name: "flags only", src: "{{!}}", raw: "{{!}}"},
		{name: "bad name end", src: "{{a!b}}", raw: "{{a"},
		{name: "scope without name", src: "{{.}}", raw: "{{."},
		{name: "extra after increment", src: "{{.x ++ y}}", raw: "{{.x ++ "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.src)
			assert.NotEmpty(t, res.ParseErrors)
			macros := res.Document.Macros()
			require.NotEmpty(t, macros)
			assert.True(t, macros[0].Recovered())
			assert.Equal(t, tt.raw, macros[0].Span.Text(tt.src))

			// The document still covers every byte of the input.
			var sb strings.Builder
			for _, it := range res.Document.Items {
				sb.WriteString(it.Pos().Text(tt.src))
			}
			assert.Equal(t, tt.src, sb.String())
		})
	}
}

func TestParseRecoveryKeepsNestedMacros(t *testing.T) {
	src := "{{a::{{b}} tail"
	res := Parse(src)
	macros := res.Document.Macros()
	require.Len(t, macros, 1)
	outer := macros[0]
	assert.True(t, outer.Recovered())
	nested := outer.Nested()
	require.Len(t, nested, 1)
	assert.False(t, nested[0].Recovered())
	assert.Equal(t, "{{b}}", nested[0].Span.Text(src))
}

func TestParseErrorPosition(t *testing.T) {
	res := Parse("ok\n{{user")
	require.Len(t, res.ParseErrors, 1)
	err := res.ParseErrors[0]
	assert.Equal(t, 2, err.Line)
	assert.Equal(t, 7, err.Column)
	assert.Contains(t, err.Error(), "expected '}}'")
}

func TestMacroAt(t *testing.T) {
	src := "x {{a::{{b}}}} y"
	doc := Parse(src).Document
	m := cst.MacroAt(doc, strings.Index(src, "b"))
	require.NotNil(t, m)
	assert.Equal(t, "b", m.Name())

	m = cst.MacroAt(doc, 3)
	require.NotNil(t, m)
	assert.Equal(t, "a", m.Name())

	assert.Nil(t, cst.MacroAt(doc, 0))
}

func TestFprint(t *testing.T) {
	src := "hi {{if::{{.x}}::yes}}"
	var sb strings.Builder
	require.NoError(t, cst.Fprint(&sb, src, Parse(src).Document))
	out := sb.String()
	assert.Contains(t, out, "document")
	assert.Contains(t, out, `macroBody "if"`)
	assert.Contains(t, out, "variableExpr .x")
	assert.Contains(t, out, "arguments list (2)")
}
