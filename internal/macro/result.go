// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ElseMarker is what {{else}} resolves to outside of an {{if}} that could
// split on it. Leftover markers are stripped after evaluation.
const ElseMarker = "\x00ELSE\x00"

// NormalizeResult converts a handler return value to text: nil becomes "",
// times become ISO-8601 UTC strings, maps, slices and structs become JSON,
// and everything else is formatted as a plain value.
func NormalizeResult(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return FormatNumber(float64(v))
	case float64:
		return FormatNumber(v)
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if string(data) == "null" {
		return ""
	}
	return string(data)
}

// FormatNumber formats a float the way a number prints in a template: no
// exponent for ordinary values and no trailing zeros.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseNumber parses a finite number, ignoring surrounding whitespace.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsTrueBoolean reports whether s is a recognized true token.
func IsTrueBoolean(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "1":
		return true
	}
	return false
}

// IsFalseBoolean reports whether s is a recognized false token.
func IsFalseBoolean(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "off", "0":
		return true
	}
	return false
}

// IsFalsy reports whether s is empty or a recognized false token.
func IsFalsy(s string) bool {
	return strings.TrimSpace(s) == "" || IsFalseBoolean(s)
}

// TrimScopedContent removes the common indentation of all non-blank lines
// and then trims surrounding whitespace.
func TrimScopedContent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i, line := range lines {
			if len(line) >= indent {
				lines[i] = line[indent:]
			} else {
				lines[i] = strings.TrimLeft(line, " \t")
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
