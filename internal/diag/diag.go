// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package diag builds the structured loggers used across stmacro.
//
// Diagnostics are split into two channels. The runtime channel carries
// user-facing warnings such as a macro called with the wrong arguments. The
// internal channel carries errors that indicate a bug in a macro handler.
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ChannelKey is the attribute that names the diagnostic channel.
const ChannelKey = "channel"

const (
	ChannelRuntime  = "runtime"
	ChannelInternal = "internal"
)

// NewLogger returns a text logger writing to w at the given level.
// Timestamps are omitted so output stays stable for golden comparisons.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel parses debug, info, warn or error. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Runtime returns l tagged with the runtime channel.
func Runtime(l *slog.Logger) *slog.Logger {
	return l.With(ChannelKey, ChannelRuntime)
}

// Internal returns l tagged with the internal channel.
func Internal(l *slog.Logger) *slog.Logger {
	return l.With(ChannelKey, ChannelInternal)
}
