// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"strings"

	"github.com/zhu748/sillytavernapk-sub003/internal/token"
)

// Flags are the modifiers written directly after {{.
type Flags struct {
	Immediate          bool // !
	Delayed            bool // ?
	Reevaluate         bool // ~
	Filter             bool // >
	ClosingBlock       bool // /
	PreserveWhitespace bool // #

	// Raw holds the symbols in source order.
	Raw []string
}

// ParseFlags decodes flag symbols. Unknown symbols are kept in Raw only.
func ParseFlags(symbols []string) Flags {
	f := Flags{Raw: symbols}
	for _, s := range symbols {
		if s == "" {
			continue
		}
		switch s[0] {
		case token.FlagImmediate:
			f.Immediate = true
		case token.FlagDelayed:
			f.Delayed = true
		case token.FlagReevaluate:
			f.Reevaluate = true
		case token.FlagFilter:
			f.Filter = true
		case token.FlagClosingBlock:
			f.ClosingBlock = true
		case token.FlagPreserveWhitespace:
			f.PreserveWhitespace = true
		}
	}
	return f
}

func (f Flags) String() string {
	return strings.Join(f.Raw, "")
}
