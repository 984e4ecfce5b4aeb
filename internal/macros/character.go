// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"strconv"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

// card builds a macro for a character-card field.
func card(name, desc string, field func(c *macro.Character) string, aliases ...string) entry {
	return value(name, macro.CategoryCharacter, desc, func(env *macro.Env) string {
		return postprocess(env, field(&env.Character))
	}, aliases...)
}

func characterMacros() []entry {
	return []entry{
		card("description", "The character's description.", func(c *macro.Character) string { return c.Description }),
		card("personality", "The character's personality.", func(c *macro.Character) string { return c.Personality }),
		card("scenario", "The chat scenario.", func(c *macro.Character) string { return c.Scenario }),
		card("mesExamples", "Formatted example dialogue.", func(c *macro.Character) string { return c.MesExamples }),
		card("mesExamplesRaw", "Example dialogue as written on the card.", func(c *macro.Character) string { return c.MesExamplesRaw }),
		card("systemPrompt", "The active system prompt.", func(c *macro.Character) string { return c.SystemPrompt }),
		card("charPrompt", "The character's main prompt override.", func(c *macro.Character) string { return c.Prompt }),
		card("charInstruction", "The character's post-history instructions.", func(c *macro.Character) string { return c.Instruction }, "charJailbreak"),
		card("charDepthPrompt", "The character's depth prompt.", func(c *macro.Character) string { return c.DepthPrompt }),
		card("creatorNotes", "The card creator's notes.", func(c *macro.Character) string { return c.CreatorNotes }),
		card("charVersion", "The card version.", func(c *macro.Character) string { return c.Version }, "version", "char_version"),
		value("model", macro.CategoryCharacter, "The model in use.", func(env *macro.Env) string { return env.System.Model }),
		value("maxPrompt", macro.CategoryCharacter, "The prompt size limit in tokens.", func(env *macro.Env) string {
			if env.System.MaxPrompt <= 0 {
				return ""
			}
			return strconv.Itoa(env.System.MaxPrompt)
		}),
	}
}
