// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import "github.com/zhu748/sillytavernapk-sub003/internal/macro"

func nameMacros() []entry {
	return []entry{
		value("user", macro.CategoryNames, "The user's name.", func(env *macro.Env) string { return env.User }),
		value("char", macro.CategoryNames, "The character's name.", func(env *macro.Env) string { return env.Char }),
		value("group", macro.CategoryNames, "Members of the group chat, or the character's name.", func(env *macro.Env) string {
			if env.Group == "" {
				return env.Char
			}
			return env.Group
		}),
		value("groupNotMuted", macro.CategoryNames, "Unmuted members of the group chat.", func(env *macro.Env) string {
			if env.GroupNotMuted == "" {
				return env.Char
			}
			return env.GroupNotMuted
		}),
		value("notChar", macro.CategoryNames, "Everyone in the chat except the current speaker.", func(env *macro.Env) string { return env.NotChar }),
		value("charIfNotGroup", macro.CategoryNames, "The character's name, or the group members in a group chat.", func(env *macro.Env) string {
			return env.CharIfNotGroup()
		}),
		value("persona", macro.CategoryNames, "The user's persona description.", func(env *macro.Env) string {
			return postprocess(env, env.Character.Persona)
		}),
	}
}

// postprocess applies the env's card-text hook.
func postprocess(env *macro.Env, s string) string {
	if env.Postprocess == nil {
		return s
	}
	return env.Postprocess(s)
}
