// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

// testRegistry registers a small set of macros that exercise the walker.
func testRegistry(t *testing.T) (*macro.Registry, *int) {
	t.Helper()
	r := macro.NewRegistry()
	count := 0
	must := func(name string, opts macro.Options) {
		_, err := r.Register(name, opts)
		require.NoError(t, err)
	}
	must("user", macro.Options{Handler: func(*macro.Context) (any, error) { return "Alice", nil }})
	must("echo", macro.Options{ArgCount: 1, Handler: func(ctx *macro.Context) (any, error) { return ctx.Arg(0), nil }})
	must("wrap", macro.Options{
		Args:    []macro.ArgDef{{Name: "content"}},
		Handler: func(ctx *macro.Context) (any, error) { return "[" + ctx.Arg(0) + "]", nil },
	})
	must("join", macro.Options{
		List:    &macro.ListSpec{},
		Handler: func(ctx *macro.Context) (any, error) { return strings.Join(ctx.List, "+"), nil },
	})
	must("pos", macro.Options{
		Args: []macro.ArgDef{{Name: "a", Optional: true}},
		Handler: func(ctx *macro.Context) (any, error) {
			return fmt.Sprintf("%d/%d", ctx.Offset, ctx.ArgOffset(0)), nil
		},
	})
	must("raw", macro.Options{ArgCount: 1, DelayArgResolution: true, Handler: func(ctx *macro.Context) (any, error) { return ctx.Arg(0), nil }})
	must("resolve", macro.Options{
		ArgCount:           1,
		DelayArgResolution: true,
		Handler: func(ctx *macro.Context) (any, error) {
			return ctx.ResolveAt(ctx.Arg(0), ctx.ArgOffset(0)), nil
		},
	})
	must("strict2", macro.Options{ArgCount: 2, Handler: func(*macro.Context) (any, error) { return "ok", nil }})
	must("fail", macro.Options{
		Args:    []macro.ArgDef{{Name: "content"}},
		Handler: func(*macro.Context) (any, error) { return nil, errors.New("refused") },
	})
	must("boom", macro.Options{Handler: func(*macro.Context) (any, error) { panic("kaboom") }})
	must("count", macro.Options{Handler: func(*macro.Context) (any, error) {
		count++
		return count, nil
	}})
	return r, &count
}

func run(t *testing.T, e *Evaluator, src string) string {
	t.Helper()
	env, err := (&macro.Env{}).Freeze(src)
	require.NoError(t, err)
	return e.Evaluate(src, env, 0, 0)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "plain text", src: "no macros here", want: "no macros here"},
		{name: "simple", src: "Hello {{user}}!", want: "Hello Alice!"},
		{name: "case insensitive", src: "{{USER}}", want: "Alice"},
		{name: "trimmed args", src: "{{ echo ::  spaced  }}", want: "spaced"},
		{name: "legacy arg", src: "{{echo some words}}", want: "some words"},
		{name: "nested args", src: "{{echo::<{{user}}>}}", want: "<Alice>"},
		{name: "list", src: "{{join::a::b::c}}", want: "a+b+c"},
		{name: "unknown keeps text", src: "{{unknown::{{user}}}}", want: "{{unknown::Alice}}"},
		{name: "scoped", src: "{{wrap}}  hi {{user}} {{/wrap}}", want: "[hi Alice]"},
		{name: "scoped dedent", src: "{{wrap}}\n    a\n      b\n{{/wrap}}", want: "[a\n  b]"},
		{name: "preserve whitespace", src: "{{#wrap}} x {{/wrap}}", want: "[ x ]"},
		{name: "nested scopes", src: "{{wrap}}a{{wrap}}b{{/wrap}}c{{/wrap}}", want: "[a[b]c]"},
		{name: "crossed scopes", src: "{{wrap}}a{{echo}}b{{/wrap}}c{{/echo}}", want: "[a{{echo}}b]c{{/echo}}"},
		{name: "scope inside argument", src: "{{echo::{{wrap}} {{user}} {{/wrap}}}}", want: "[Alice]"},
		{name: "inline does not open", src: "{{wrap::x}}{{/wrap}}", want: "[x]{{/wrap}}"},
		{name: "unmatched closer", src: "x{{/wrap}}y", want: "x{{/wrap}}y"},
		{name: "unclosed opener runs inline", src: "{{wrap}} tail", want: "{{wrap}} tail"},
		{name: "strict arity leaves raw", src: "{{strict2::a}}", want: "{{strict2::a}}"},
		{name: "failed scope leaves raw", src: "{{fail}}x{{/fail}}!", want: "{{fail}}x{{/fail}}!"},
		{name: "panic leaves raw", src: "a{{boom}}b", want: "a{{boom}}b"},
		{name: "recovered", src: "{{user", want: "{{user"},
		{name: "recovered keeps nested", src: "{{echo::{{user}} tail", want: "{{echo::Alice tail"},
		{name: "empty macro", src: "{{}}", want: "{{}}"},
		{name: "delayed args", src: "{{raw::{{user}}}}", want: "{{user}}"},
		{name: "comment-like unknown", src: "{{// note}}", want: "{{// note}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := testRegistry(t)
			assert.Equal(t, tt.want, run(t, New(r), tt.src))
		})
	}
}

func TestOffsets(t *testing.T) {
	r, _ := testRegistry(t)
	e := New(r)

	assert.Equal(t, "2/9", run(t, e, "ab{{pos::x}}"))
	assert.Equal(t, "102/109", e.Evaluate("ab{{pos::x}}", &macro.Env{}, 100, 0))

	// Nested macros keep their position in the outer text.
	assert.Equal(t, "8/8", run(t, e, "{{echo::{{pos}}}}"))

	// Scoped content starts after its leading whitespace.
	assert.Equal(t, "[11/11]", run(t, e, "{{wrap}}   {{pos}}{{/wrap}}"))

	// Resolve keeps the offset of the text it is given.
	assert.Equal(t, "11/11", run(t, e, "{{resolve::{{pos}}}}"))
}

func TestRawInner(t *testing.T) {
	r, _ := testRegistry(t)
	inner := func(ctx *macro.Context) (any, error) { return "<" + ctx.RawInner + ">", nil }
	_, err := r.Register("show", macro.Options{List: &macro.ListSpec{}, Handler: inner})
	require.NoError(t, err)
	_, err = r.Register("showraw", macro.Options{ArgCount: 1, DelayArgResolution: true, Handler: inner})
	require.NoError(t, err)
	e := New(r)

	assert.Equal(t, "<show>", run(t, e, "{{show}}"))
	assert.Equal(t, "<show::  Alice >", run(t, e, "{{show::  {{user}} }}"))
	assert.Equal(t, "<show:: Alice ::x::[y]>", run(t, e, "{{show:: {{user}} ::x::{{echo::[y]}}}}"))
	assert.Equal(t, "<showraw::{{user}}>", run(t, e, "{{showraw::{{user}}}}"))
}

func TestLargeInput(t *testing.T) {
	r, _ := testRegistry(t)
	e := New(r)

	unclosed := strings.Repeat("{{wrap}}a", 20000)
	assert.Equal(t, unclosed, run(t, e, unclosed))

	closed := strings.Repeat("{{wrap}}", 20000) + "x" + strings.Repeat("{{/wrap}}", 20000)
	out := run(t, e, closed)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("[", DefaultMaxDepth+1)))

	// Past the nesting limit the remaining arguments stay as written.
	const n = 20000
	deep := strings.Repeat("{{echo::", n) + "x" + strings.Repeat("}}", n)
	rest := n - DefaultMaxDepth - 1
	assert.Equal(t, strings.Repeat("{{echo::", rest)+"x"+strings.Repeat("}}", rest), run(t, e, deep))
}

func TestPipeline(t *testing.T) {
	r, _ := testRegistry(t)
	var depths []int
	e := New(r, WithPipeline(func(text string, env *macro.Env, offset, depth int) string {
		depths = append(depths, depth)
		return "P(" + text + ")"
	}))
	assert.Equal(t, "P(x)", run(t, e, "{{resolve::x}}"))
	assert.Equal(t, []int{1}, depths)
}

func TestMaxDepth(t *testing.T) {
	r, _ := testRegistry(t)
	var buf bytes.Buffer
	e := New(r, WithMaxDepth(1), WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	assert.Equal(t, "{{user}}", run(t, e, "{{echo::{{echo::{{user}}}}}}"))
	assert.Contains(t, buf.String(), "macro nesting too deep")
	assert.Equal(t, 1, e.MaxDepth())

	assert.Equal(t, DefaultMaxDepth, New(r, WithMaxDepth(0)).MaxDepth())
}

func TestDiagnosticChannels(t *testing.T) {
	r, _ := testRegistry(t)
	var buf bytes.Buffer
	e := New(r, WithLogger(diag.NewLogger(&buf, slog.LevelDebug)))

	run(t, e, "{{boom}}")
	assert.Contains(t, buf.String(), "channel=internal")
	assert.Contains(t, buf.String(), "kaboom")

	buf.Reset()
	run(t, e, "{{strict2::a}}")
	assert.Contains(t, buf.String(), "channel=runtime")
	assert.Contains(t, buf.String(), "macro left unresolved")

	buf.Reset()
	run(t, e, "{{usr}}")
	assert.Contains(t, buf.String(), "unknown macro")
	assert.Contains(t, buf.String(), "suggestions=[user]")
}

func TestDynamicMacros(t *testing.T) {
	r, _ := testRegistry(t)
	e := New(r)
	env, err := (&macro.Env{Dynamic: map[string]macro.DynamicMacro{
		"mood": macro.StringMacro("happy"),
		"user": macro.StringMacro("Override"),
	}}).Freeze("")
	require.NoError(t, err)
	assert.Equal(t, "happy Override", e.Evaluate("{{mood}} {{user}}", env, 0, 0))
}
