// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

// lastMessage returns the newest non-system message that match accepts.
func lastMessage(env *macro.Env, match func(macro.Message) bool) (macro.Message, bool) {
	for i := len(env.Chat) - 1; i >= 0; i-- {
		m := env.Chat[i]
		if m.IsSystem {
			continue
		}
		if match == nil || match(m) {
			return m, true
		}
	}
	return macro.Message{}, false
}

func messageText(env *macro.Env, match func(macro.Message) bool) string {
	m, _ := lastMessage(env, match)
	return m.Text
}

func chatMacros() []entry {
	return []entry{
		value("lastMessage", macro.CategoryChat, "Text of the last chat message.", func(env *macro.Env) string {
			return messageText(env, nil)
		}),
		value("lastUserMessage", macro.CategoryChat, "Text of the last message sent by the user.", func(env *macro.Env) string {
			return messageText(env, func(m macro.Message) bool { return m.IsUser })
		}),
		value("lastCharMessage", macro.CategoryChat, "Text of the last message sent by a character.", func(env *macro.Env) string {
			return messageText(env, func(m macro.Message) bool { return !m.IsUser })
		}),
		value("lastMessageId", macro.CategoryChat, "Index of the last chat message.", func(env *macro.Env) string {
			if len(env.Chat) == 0 {
				return ""
			}
			return strconv.Itoa(len(env.Chat) - 1)
		}),
		value("firstIncludedMessageId", macro.CategoryChat, "Index of the oldest message in the prompt.", func(env *macro.Env) string {
			if env.FirstIncludedMessageID < 0 {
				return ""
			}
			return strconv.Itoa(env.FirstIncludedMessageID)
		}),
		value("currentSwipeId", macro.CategoryChat, "1-based swipe number of the last message.", func(env *macro.Env) string {
			m, ok := lastMessage(env, nil)
			if !ok || m.SwipeCount == 0 {
				return ""
			}
			return strconv.Itoa(m.SwipeID + 1)
		}),
		value("lastSwipeId", macro.CategoryChat, "Number of swipes of the last message.", func(env *macro.Env) string {
			m, ok := lastMessage(env, nil)
			if !ok || m.SwipeCount == 0 {
				return ""
			}
			return strconv.Itoa(m.SwipeCount)
		}),
		value("idleDuration", macro.CategoryChat, "Time since the user's last message.", idleDuration),
	}
}

func idleDuration(env *macro.Env) string {
	m, ok := lastMessage(env, func(m macro.Message) bool { return m.IsUser && !m.SendDate.IsZero() })
	if !ok {
		return "just now"
	}
	// Empty labels leave a trailing separator.
	return strings.TrimSpace(humanize.RelTime(m.SendDate, env.Time(), "", ""))
}
