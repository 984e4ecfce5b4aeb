// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package engine

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
	"github.com/zhu748/sillytavernapk-sub003/internal/macros"
	"github.com/zhu748/sillytavernapk-sub003/internal/store"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	reg := macro.NewRegistry()
	vars := store.NewMemory()
	require.NoError(t, macros.Register(reg, vars))
	return New(reg, append([]Option{WithVariables(vars)}, opts...)...)
}

func env() *macro.Env {
	return &macro.Env{Names: macro.Names{User: "Alice", Char: "Bob"}, FirstIncludedMessageID: -1}
}

func TestEvaluateProperties(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "empty", src: "", want: ""},
		{name: "plain text", src: "just {text} with } braces", want: "just {text} with } braces"},
		{name: "unknown passthrough", src: "{{totallyUnknown}}", want: "{{totallyUnknown}}"},
		{name: "arity too few", src: "{{reverse}}", want: "{{reverse}}"},
		{name: "arity too many", src: "{{reverse::a::b}}", want: "{{reverse::a::b}}"},
		{name: "scoped merge", src: "{{reverse}}abc{{/reverse}}", want: "cba"},
		{name: "variable round trip", src: "{{.counter = 5}}{{.counter++}}{{.counter}}", want: "66"},
		{name: "comment", src: "{{// anything::here}}", want: ""},
		{name: "escape round trip", src: `\{not a macro\}`, want: "{not a macro}"},
		{name: "escaped macro", src: `\{\{user\}\}`, want: "{{user}}"},
		{name: "legacy tags", src: "<USER> and <BOT>", want: "Alice and Bob"},
		{name: "legacy char if not group", src: "<CHARIFNOTGROUP>", want: "Bob"},
		{name: "malformed keeps text", src: "{{user", want: "{{user"},
		{name: "malformed resolves nested", src: "{{if::{{user}}", want: "{{if::Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newEngine(t).Evaluate(tt.src, env()))
		})
	}
}

func TestEvaluateStateAcrossCalls(t *testing.T) {
	e := newEngine(t)
	assert.Equal(t, "", e.Evaluate("{{.counter = 5}}", env()))
	assert.Equal(t, "6", e.Evaluate("{{.counter++}}", env()))
	assert.Equal(t, "6", e.Evaluate("{{.counter}}", env()))
	assert.Equal(t, "6", e.Evaluate("{{getvar::counter}}", env()))

	v, ok, err := e.Variables().Get(store.Local, "counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6", v)
}

func TestDelayedBranch(t *testing.T) {
	e := newEngine(t)
	calls := 0
	_, err := e.Registry().Register("sideEffectMacro", macro.Options{Handler: func(*macro.Context) (any, error) {
		calls++
		return "bad", nil
	}})
	require.NoError(t, err)

	assert.Equal(t, "ok", e.Evaluate("{{if false}}{{sideEffectMacro}}{{else}}ok{{/if}}", env()))
	assert.Zero(t, calls)
}

func TestPickPositions(t *testing.T) {
	e := newEngine(t)
	src := strings.Repeat("{{pick::a::b::c::d::e::f::g::h}}", 16)
	first := e.Evaluate(src, env())
	assert.Equal(t, first, e.Evaluate(src, env()))

	// Shifted context offsets are just as stable.
	shifted := e.EvaluateAt(src, env(), 1000)
	assert.Len(t, shifted, 16)
	assert.Equal(t, shifted, e.EvaluateAt(src, env(), 1000))
}

func TestProcessors(t *testing.T) {
	e := newEngine(t)

	require.NoError(t, e.AddPreProcessor(Processor{ID: "shout", Fn: func(s string, _ *macro.Env) string {
		return strings.ReplaceAll(s, "[name]", "{{user}}")
	}}))
	require.NoError(t, e.AddPostProcessor(Processor{ID: "bang", Priority: 5, Fn: func(s string, _ *macro.Env) string {
		return s + "!"
	}}))
	assert.Equal(t, "hi Alice!", e.Evaluate("hi [name]", env()))

	post := e.PostProcessors()
	require.NotEmpty(t, post)
	assert.Equal(t, "bang", post[0].ID)
	pre := e.PreProcessors()
	assert.Equal(t, "shout", pre[len(pre)-1].ID)
	assert.Equal(t, DefaultPriority, pre[len(pre)-1].Priority)

	// Same ID replaces.
	require.NoError(t, e.AddPostProcessor(Processor{ID: "bang", Fn: func(s string, _ *macro.Env) string {
		return s + "?"
	}}))
	assert.Equal(t, "x?", e.Evaluate("x", env()))

	assert.True(t, e.RemoveProcessor("bang"))
	assert.False(t, e.RemoveProcessor("bang"))
	assert.Equal(t, "x", e.Evaluate("x", env()))

	assert.Error(t, e.AddPreProcessor(Processor{Fn: func(s string, _ *macro.Env) string { return s }}))
	assert.Error(t, e.AddPreProcessor(Processor{ID: "nil"}))
}

func TestProcessorsRunOnResolvedText(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.AddPreProcessor(Processor{ID: "alias", Fn: func(s string, _ *macro.Env) string {
		return strings.ReplaceAll(s, "@me", "{{user}}")
	}}))
	assert.Equal(t, "Alice", e.Evaluate("{{if::1::@me}}", env()))
}

func TestEvaluateRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, WithLogger(diag.NewLogger(&buf, slog.LevelDebug)))
	require.NoError(t, e.AddPostProcessor(Processor{ID: "boom", Fn: func(string, *macro.Env) string {
		panic("processor bug")
	}}))
	assert.Equal(t, "{{user}}", e.Evaluate("{{user}}", env()))
	assert.Contains(t, buf.String(), "channel=internal")
	assert.Contains(t, buf.String(), "processor bug")
}

func TestInvalidDynamicMacrosAreSkipped(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(t, WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	ev := env()
	ev.Dynamic = map[string]macro.DynamicMacro{
		"mood": macro.StringMacro("calm"),
		"bad":  macro.HandlerMacro(nil),
	}
	assert.Equal(t, "calm {{bad}}", e.Evaluate("{{mood}} {{bad}}", ev))
	assert.Contains(t, buf.String(), "invalid dynamic macros skipped")
}

func TestMaxDepth(t *testing.T) {
	e := newEngine(t, WithMaxDepth(2))
	assert.Equal(t, "ALICE", e.Evaluate("{{upper::{{user}}}}", env()))
	// The innermost {{user}} sits past the limit and stays unresolved.
	assert.Equal(t, "{{USER}}", e.Evaluate("{{upper::{{upper::{{upper::{{user}}}}}}}}", env()))
}

func TestFindUnclosedScopes(t *testing.T) {
	e := newEngine(t)

	got := e.FindUnclosedScopes("{{if x}}partial")
	require.Len(t, got, 1)
	assert.Equal(t, UnclosedScope{Name: "if", Offset: 0, Line: 1, Column: 1}, got[0])

	got = e.FindUnclosedScopes("{{if a}}x{{/if}}\n{{if b}}")
	require.Len(t, got, 1)
	assert.Equal(t, 17, got[0].Offset)
	assert.Equal(t, 2, got[0].Line)

	got = e.FindUnclosedScopes("{{if a}}{{reverse}}")
	require.Len(t, got, 2)
	assert.Equal(t, "if", got[0].Name)
	assert.Equal(t, "reverse", got[1].Name)

	assert.Empty(t, e.FindUnclosedScopes("{{user}} {{if::a::b}} {{unknown}}"))
}

func TestMacroAt(t *testing.T) {
	e := newEngine(t)
	src := "{{upper::abc {{user}}}}"

	cc := e.MacroAt(src, 3)
	require.NotNil(t, cc)
	assert.Equal(t, "upper", cc.Macro.Name())
	assert.Equal(t, -1, cc.ArgIndex)
	require.NotNil(t, cc.Definition)

	cc = e.MacroAt(src, 10)
	require.NotNil(t, cc)
	assert.Equal(t, "upper", cc.Macro.Name())
	assert.Equal(t, 0, cc.ArgIndex)

	cc = e.MacroAt(src, 15)
	require.NotNil(t, cc)
	assert.Equal(t, "user", cc.Macro.Name())

	assert.Nil(t, e.MacroAt("plain", 2))
}

func TestParseDocument(t *testing.T) {
	e := newEngine(t)
	res := e.ParseDocument("a {{user}} b")
	require.NotNil(t, res.Document)
	assert.False(t, res.HasErrors())
	assert.Len(t, res.Document.Macros(), 1)
}
