// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
)

func echoArgs(ctx *Context) (any, error) {
	return strings.Join(ctx.Args, ","), nil
}

func TestExecuteStrictArity(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("two", Options{ArgCount: 2, Handler: echoArgs})
	require.NoError(t, err)

	out, err := r.Execute(&Call{Name: "two", Args: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a,b", out)

	_, err = r.Execute(&Call{Name: "two", Args: []string{"a"}})
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "two", re.Macro)
	assert.True(t, errors.Is(err, ErrArity))
	assert.Contains(t, err.Error(), "exactly 2, got 1")
}

func TestExecuteLenientArity(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	_, err := r.Register("one", Options{
		Args:    []ArgDef{{Name: "x", Optional: true, Default: "dflt"}},
		Lenient: true,
		Handler: func(ctx *Context) (any, error) {
			return ctx.Arg(0) + "|" + strings.Join(ctx.Args, ","), nil
		},
	})
	require.NoError(t, err)

	out, err := r.Execute(&Call{Name: "one", Args: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "a|a", out)
	assert.Contains(t, buf.String(), "wrong number of arguments")
	assert.Contains(t, buf.String(), "channel=runtime")

	out, err = r.Execute(&Call{Name: "one"})
	require.NoError(t, err)
	assert.Equal(t, "dflt|", out)
}

func TestExecuteListArguments(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("join", Options{
		Args: []ArgDef{{Name: "sep"}},
		List: &ListSpec{Min: 1, Max: 3},
		Handler: func(ctx *Context) (any, error) {
			return strings.Join(ctx.List, ctx.Arg(0)), nil
		},
	})
	require.NoError(t, err)

	out, err := r.Execute(&Call{Name: "join", Args: []string{"-", "a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", out)

	_, err = r.Execute(&Call{Name: "join", Args: []string{"-"}})
	assert.True(t, errors.Is(err, ErrArity))
	_, err = r.Execute(&Call{Name: "join", Args: []string{"-", "a", "b", "c", "d"}})
	assert.True(t, errors.Is(err, ErrArity))

	_, err = r.Register("plain", Options{Handler: func(ctx *Context) (any, error) {
		assert.Nil(t, ctx.List)
		return nil, nil
	}})
	require.NoError(t, err)
	out, err = r.Execute(&Call{Name: "plain"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecuteTypeChecks(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register("typed", Options{
		Args: []ArgDef{
			{Name: "i", Type: TypeInteger},
			{Name: "n", Type: TypeNumber},
			{Name: "b", Type: TypeBoolean},
		},
		Handler: echoArgs,
	})
	require.NoError(t, err)

	tests := []struct {
		args []string
		ok   bool
	}{
		{args: []string{"-3", "1.5", "true"}, ok: true},
		{args: []string{"7", "1e3", "off"}, ok: true},
		{args: []string{"1.0", "1", "true"}},
		{args: []string{"1", "abc", "true"}},
		{args: []string{"1", "1", "maybe"}},
		{args: []string{"1", "NaN", "1"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, ","), func(t *testing.T) {
			_, err := r.Execute(&Call{Name: "typed", Args: tt.args})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrArgType), "got %v", err)
			}
		})
	}
}

func TestExecuteHandlerFailures(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register("boom", Options{Handler: func(*Context) (any, error) { panic("kaboom") }})
	_, _ = r.Register("fail", Options{Handler: func(*Context) (any, error) { return nil, errors.New("nope") }})

	_, err := r.Execute(&Call{Name: "boom"})
	assert.True(t, IsInternal(err))
	assert.Contains(t, err.Error(), "kaboom")

	_, err = r.Execute(&Call{Name: "fail"})
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.False(t, IsInternal(err))
	assert.Equal(t, "fail", re.Macro)

	_, err = r.Execute(&Call{Name: "missing"})
	assert.True(t, errors.Is(err, ErrUnknownMacro))
}

func TestExecuteContext(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register("user", Options{Handler: constant("Alice")})
	var got *Context
	_, err := r.Register("capture", Options{
		ArgCount:           1,
		DelayArgResolution: true,
		Handler: func(ctx *Context) (any, error) {
			got = ctx
			return ctx.ResolveAt(ctx.Arg(0), ctx.ArgOffset(0)), nil
		},
	})
	require.NoError(t, err)

	env, err := (&Env{Dynamic: map[string]DynamicMacro{"mood": StringMacro("happy")}}).Freeze("x")
	require.NoError(t, err)

	var resolvedAt int
	out, err := r.Execute(&Call{
		Name:       "capture",
		Args:       []string{"{{user}}"},
		ArgOffsets: []int{12},
		Flags:      ParseFlags([]string{"#"}),
		Scoped:     true,
		Raw:        "{{#capture}}{{user}}{{/capture}}",
		RawInner:   "#capture",
		Offset:     3,
		Env:        env,
		Resolve: func(text string, offset int) string {
			resolvedAt = offset
			return strings.ReplaceAll(text, "{{user}}", "Alice")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", out)
	assert.Equal(t, 12, resolvedAt)

	require.NotNil(t, got)
	assert.True(t, got.Scoped)
	assert.True(t, got.Flags.PreserveWhitespace)
	assert.Equal(t, 3, got.Offset)
	assert.Equal(t, 3, got.ArgOffset(5))
	assert.True(t, got.HasMacro("USER"))
	assert.True(t, got.HasMacro("mood"))
	assert.False(t, got.HasMacro("nothing"))
	assert.Equal(t, "a\nb", got.TrimContent("  a\n  b\n"))
}

func TestExecuteDefinitionOverride(t *testing.T) {
	r := NewRegistry()
	def, err := NewDefinition("virtual", Options{Handler: constant(42)})
	require.NoError(t, err)
	out, err := r.Execute(&Call{Name: "virtual", Definition: def})
	require.NoError(t, err)
	assert.Equal(t, "42", out)
}
