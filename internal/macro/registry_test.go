// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
)

func constant(v any) Handler {
	return func(*Context) (any, error) { return v, nil }
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		mac  string
		opts Options
		err  error
	}{
		{name: "digit start", mac: "1abc", opts: Options{Handler: constant("")}, err: ErrInvalidName},
		{name: "space", mac: "a b", opts: Options{Handler: constant("")}, err: ErrInvalidName},
		{name: "no handler", mac: "ok", opts: Options{}, err: ErrInvalidDefinition},
		{name: "count and args", mac: "ok", opts: Options{Handler: constant(""), ArgCount: 1, Args: []ArgDef{{Name: "a"}}}, err: ErrInvalidDefinition},
		{name: "optional gap", mac: "ok", opts: Options{Handler: constant(""), Args: []ArgDef{{Name: "a", Optional: true}, {Name: "b"}}}, err: ErrInvalidDefinition},
		{name: "bad type", mac: "ok", opts: Options{Handler: constant(""), Args: []ArgDef{{Name: "a", Type: "date"}}}, err: ErrInvalidDefinition},
		{name: "bad list", mac: "ok", opts: Options{Handler: constant(""), List: &ListSpec{Min: 3, Max: 1}}, err: ErrInvalidDefinition},
		{name: "bad alias", mac: "ok", opts: Options{Handler: constant(""), Aliases: []Alias{{Name: "no way"}}}, err: ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRegistry(WithLogger(diag.NewLogger(&buf, slog.LevelDebug)))
			def, err := r.Register(tt.mac, tt.opts)
			assert.Nil(t, def)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
			assert.Contains(t, buf.String(), "macro registration failed")
			assert.False(t, r.Has(tt.mac))
		})
	}
}

func TestRegisterComputesBounds(t *testing.T) {
	r := NewRegistry()
	def, err := r.Register("pad", Options{
		Handler: constant(""),
		Args: []ArgDef{
			{Name: "text"},
			{Name: "width", Type: TypeInteger, Optional: true, Default: "10"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, def.MinArgs)
	assert.Equal(t, 2, def.MaxArgs)
	assert.True(t, def.StrictArgs)
	assert.Equal(t, CategoryMisc, def.Category)
	assert.Equal(t, "{{pad::text::[width]}}", def.Signature())
	assert.Equal(t, "core", def.Source.Name)

	min, max := def.Bounds()
	assert.Equal(t, 1, min)
	assert.Equal(t, 2, max)
	assert.True(t, def.AcceptsScope(0))
	assert.True(t, def.AcceptsScope(1))
	assert.False(t, def.AcceptsScope(2))

	list, err := r.Register("pick", Options{Handler: constant(""), List: &ListSpec{Min: 1}})
	require.NoError(t, err)
	min, max = list.Bounds()
	assert.Equal(t, 1, min)
	assert.Equal(t, -1, max)
	assert.False(t, list.AcceptsScope(0))
}

func TestCommentNameIsValid(t *testing.T) {
	assert.True(t, ValidName("//"))
	assert.True(t, ValidName("a-b_c2"))
	assert.False(t, ValidName("/"))
	assert.False(t, ValidName("-a"))
}

func TestAliases(t *testing.T) {
	r := NewRegistry()
	def, err := r.Register("charVersion", Options{
		Handler: constant("1.0"),
		Aliases: []Alias{{Name: "version", Visible: true}, {Name: "char_version"}},
	})
	require.NoError(t, err)

	alias := r.Get("VERSION")
	require.NotNil(t, alias)
	assert.Equal(t, "charVersion", alias.AliasOf)
	assert.True(t, alias.AliasVisible)
	assert.Same(t, def, r.GetPrimary("char_version"))
	assert.Same(t, def, r.GetPrimary("charversion"))

	all := r.All(ListOptions{})
	assert.Len(t, all, 3)
	assert.Len(t, r.All(ListOptions{ExcludeAliases: true}), 1)
	visible := r.All(ListOptions{ExcludeHiddenAliases: true})
	require.Len(t, visible, 2)
	assert.Equal(t, "charVersion", visible[0].Name)
	assert.Equal(t, "version", visible[1].Name)

	require.True(t, r.RegisterAlias("char_version", "cv", false))
	assert.Same(t, def, r.GetPrimary("cv"))
	assert.False(t, r.RegisterAlias("missing", "x", true))

	require.True(t, r.Unregister("version"))
	assert.False(t, r.Has("version"))
	assert.True(t, r.Has("charVersion"))

	require.True(t, r.Unregister("charVersion"))
	assert.False(t, r.Has("char_version"))
	assert.False(t, r.Has("cv"))
	assert.False(t, r.Unregister("charVersion"))
}

func TestReRegisterDropsOldAliases(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	_, err := r.Register("a", Options{Handler: constant(1), Aliases: []Alias{{Name: "old"}}})
	require.NoError(t, err)
	_, err = r.Register("A", Options{Handler: constant(2)})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "macro re-registered")
	assert.False(t, r.Has("old"))
	out, err := r.Execute(&Call{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestAliasNeverReplacesMacro(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	foo, err := r.Register("foo", Options{Handler: constant("foo"), Aliases: []Alias{{Name: "f"}}})
	require.NoError(t, err)
	_, err = r.Register("bar", Options{Handler: constant("bar")})
	require.NoError(t, err)

	assert.False(t, r.RegisterAlias("bar", "foo", true))
	assert.Contains(t, buf.String(), "macro alias conflicts with a registered macro")
	assert.Same(t, foo, r.GetPrimary("foo"))
	assert.Same(t, foo, r.GetPrimary("f"))

	require.True(t, r.Unregister("bar"))
	assert.True(t, r.Has("f"))
	assert.Same(t, foo, r.GetPrimary("f"))

	// Aliases given at registration follow the same rule.
	baz, err := r.Register("baz", Options{Handler: constant("baz"), Aliases: []Alias{{Name: "foo"}, {Name: "z"}}})
	require.NoError(t, err)
	assert.Same(t, foo, r.GetPrimary("foo"))
	assert.Equal(t, []Alias{{Name: "z"}}, baz.Aliases)
}

func TestAliasMovesBetweenMacros(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(WithLogger(diag.NewLogger(&buf, slog.LevelWarn)))
	_, err := r.Register("a", Options{Handler: constant(1), Aliases: []Alias{{Name: "x"}}})
	require.NoError(t, err)
	b, err := r.Register("b", Options{Handler: constant(2)})
	require.NoError(t, err)

	require.True(t, r.RegisterAlias("b", "x", true))
	assert.Contains(t, buf.String(), "macro alias shadows existing entry")
	assert.Same(t, b, r.GetPrimary("x"))
	assert.Empty(t, r.GetPrimary("a").Aliases)
	assert.Equal(t, []Alias{{Name: "x", Visible: true}}, b.Aliases)

	require.True(t, r.Unregister("a"))
	assert.Same(t, b, r.GetPrimary("x"))

	// Adding the same alias twice keeps one entry.
	require.True(t, r.RegisterAlias("b", "X", false))
	assert.Equal(t, []Alias{{Name: "X"}}, r.GetPrimary("b").Aliases)
}

func TestSuggest(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"user", "char", "setvar", "getvar", "setglobalvar"} {
		_, err := r.Register(n, Options{Handler: constant("")})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"user"}, r.Suggest("usr", 3))
	assert.Equal(t, "setvar", r.Suggest("setvr", 1)[0])
	assert.Contains(t, r.Suggest("gtevar", 5), "getvar")
	assert.Empty(t, r.Suggest("zzzzzz", 5))
}

func TestCategories(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Register("a", Options{Handler: constant(""), Category: CategoryTime})
	_, _ = r.Register("b", Options{Handler: constant(""), Category: CategoryNames})
	assert.Equal(t, []Category{CategoryNames, CategoryTime}, r.Categories())
	assert.Len(t, r.All(ListOptions{Category: CategoryTime}), 1)
}

func TestExplicitSource(t *testing.T) {
	r := NewRegistry()
	def, err := r.Register("ext", Options{Handler: constant(""), Source: &Source{Name: "my-ext", Extension: true}})
	require.NoError(t, err)
	assert.Equal(t, Source{Name: "my-ext", Extension: true}, def.Source)
}
