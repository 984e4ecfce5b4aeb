// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeze(t *testing.T) {
	env := &Env{
		Names:   Names{User: "Alice"},
		Extra:   map[string]string{"k": "v"},
		Dynamic: map[string]DynamicMacro{"Greeting": StringMacro("hi")},
	}
	frozen, err := env.Freeze("hello {{user}}")
	require.NoError(t, err)
	assert.True(t, frozen.Frozen())
	assert.False(t, env.Frozen())
	assert.Equal(t, "hello {{user}}", frozen.Content())
	assert.NotZero(t, frozen.ContentHash())

	env.Extra["k"] = "changed"
	assert.Equal(t, "v", frozen.Extra["k"])

	def := frozen.Macro("greeting")
	require.NotNil(t, def)
	assert.Equal(t, CategoryDynamic, def.Category)
	assert.Equal(t, "dynamic", def.Source.Name)
	assert.Nil(t, env.Macro("greeting"))

	again, err := frozen.Freeze("other")
	require.NoError(t, err)
	assert.Same(t, frozen, again)

	other, err := env.Freeze("hello {{user}}")
	require.NoError(t, err)
	assert.Equal(t, frozen.ContentHash(), other.ContentHash())
}

func TestFreezeNil(t *testing.T) {
	var env *Env
	frozen, err := env.Freeze("x")
	require.NoError(t, err)
	assert.Equal(t, -1, frozen.FirstIncludedMessageID)
}

func TestDynamicVariants(t *testing.T) {
	env := &Env{Dynamic: map[string]DynamicMacro{
		"s":   StringMacro("text"),
		"h":   HandlerMacro(func(ctx *Context) (any, error) { return len(ctx.Args), nil }),
		"d":   DefinitionMacro(Options{ArgCount: 1, Handler: func(ctx *Context) (any, error) { return "<" + ctx.Arg(0) + ">", nil }, Aliases: []Alias{{Name: "dd"}}}),
		"bad": HandlerMacro(nil),
		"1no": StringMacro("x"),
	}}
	frozen, err := env.Freeze("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
	assert.True(t, errors.Is(err, ErrInvalidName))
	assert.Nil(t, frozen.Macro("bad"))

	r := NewRegistry()
	run := func(name string, args ...string) string {
		out, err := r.Execute(&Call{Name: name, Args: args, Env: frozen})
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, "text", run("s", "ignored"))
	assert.Equal(t, "2", run("h", "a", "b"))
	assert.Equal(t, "<x>", run("d", "x"))
	assert.Equal(t, "<y>", run("dd", "y"))
	assert.Equal(t, DynamicDefinition, env.Dynamic["d"].Kind())
}

func TestEnvTime(t *testing.T) {
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	env := &Env{Now: func() time.Time { return fixed }}
	assert.Equal(t, fixed, env.Time())
	assert.WithinDuration(t, time.Now(), (&Env{}).Time(), time.Minute)
}

func TestCharIfNotGroup(t *testing.T) {
	assert.Equal(t, "Bob", Names{Char: "Bob"}.CharIfNotGroup())
	assert.Equal(t, "Bob, Carol", Names{Char: "Bob", Group: "Bob, Carol"}.CharIfNotGroup())
}
