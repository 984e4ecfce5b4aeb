// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

const maxDice = 1000

var diceFormula = regexp.MustCompile(`(?i)^(\d*)d(\d+)([+-]\d+)?$`)

func randomMacros() []entry {
	return []entry{
		{name: "random", opts: macro.Options{
			Category:    macro.CategoryRandom,
			Description: "A random item from the list. A single argument is split on commas.",
			List:        &macro.ListSpec{},
			Examples:    []string{"{{random::red::green::blue}}", "{{random: red, green, blue}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				items := choices(ctx.List)
				if len(items) == 0 {
					return "", nil
				}
				return items[intn(ctx.Env, len(items))], nil
			},
		}},
		{name: "pick", opts: macro.Options{
			Category:    macro.CategoryRandom,
			Description: "Like random, but stable for the same chat, text and position.",
			List:        &macro.ListSpec{},
			Examples:    []string{"{{pick::red::green::blue}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				items := choices(ctx.List)
				if len(items) == 0 {
					return "", nil
				}
				return items[seeded(ctx).IntN(len(items))], nil
			},
		}},
		{name: "roll", opts: macro.Options{
			Category:    macro.CategoryRandom,
			Description: "Rolls dice: NdM with an optional +K or -K. A plain number rolls one die.",
			Args:        []macro.ArgDef{{Name: "formula", Sample: "2d6+1"}},
			Examples:    []string{"{{roll::1d20}}", "{{roll:3d6}}", "{{roll::6}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				total, err := roll(ctx.Arg(0), func(n int) int { return intn(ctx.Env, n) })
				if err != nil {
					ctx.Warn("invalid dice formula", "formula", ctx.Arg(0), "err", err)
					return "", nil
				}
				return total, nil
			},
		}},
	}
}

// choices returns the list items. A single item is the legacy comma form,
// where \, is a literal comma.
func choices(list []string) []string {
	if len(list) != 1 {
		return list
	}
	const placeholder = "\x00COMMA\x00"
	s := strings.ReplaceAll(list[0], `\,`, placeholder)
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(strings.ReplaceAll(p, placeholder, ",")))
	}
	return out
}

func intn(env *macro.Env, n int) int {
	if env.Random != nil {
		return env.Random(n)
	}
	return rand.IntN(n)
}

// seeded returns a generator fixed by the chat, the input text and the
// macro's global offset.
func seeded(ctx *macro.Context) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s-%d-%d", ctx.Env.ChatID, ctx.Env.ContentHash(), ctx.Offset)
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

func roll(formula string, intn func(int) int) (int, error) {
	f := strings.ReplaceAll(strings.TrimSpace(formula), " ", "")
	if n, err := strconv.Atoi(f); err == nil {
		f = "1d" + strconv.Itoa(n)
	}
	m := diceFormula.FindStringSubmatch(f)
	if m == nil {
		return 0, fmt.Errorf("expected NdM, got %q", formula)
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	if count < 1 || count > maxDice || sides < 1 {
		return 0, fmt.Errorf("dice out of range in %q", formula)
	}
	total := 0
	for range count {
		total += intn(sides) + 1
	}
	if m[3] != "" {
		mod, _ := strconv.Atoi(m[3])
		total += mod
	}
	return total, nil
}
