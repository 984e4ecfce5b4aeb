// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macros

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/zhu748/sillytavernapk-sub003/internal/macro"
)

var utcOffset = regexp.MustCompile(`(?i)^UTC([+-]\d{1,2})(?::?(\d{2}))?$`)

// timeLayouts are the formats accepted by {{timeDiff}}.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func timeMacros() []entry {
	return []entry{
		{name: "time", opts: macro.Options{
			Category:    macro.CategoryTime,
			Description: "Current time, optionally at a UTC offset.",
			Args:        []macro.ArgDef{{Name: "offset", Description: "UTC offset such as UTC+2", Optional: true, Sample: "UTC-5"}},
			Examples:    []string{"{{time}}", "{{time::UTC+2}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				t := ctx.Env.Time()
				if off := strings.TrimSpace(ctx.Arg(0)); off != "" {
					loc, ok := parseUTCOffset(off)
					if !ok {
						ctx.Warn("invalid UTC offset, using local time", "offset", off)
					} else {
						t = t.In(loc)
					}
				}
				return t.Format("3:04 PM"), nil
			},
		}},
		timeValue("date", "Current date.", "January 2, 2006"),
		timeValue("weekday", "Current day of the week.", "Monday"),
		timeValue("isotime", "Current time as HH:MM.", "15:04"),
		timeValue("isodate", "Current date as YYYY-MM-DD.", "2006-01-02"),
		{name: "datetimeformat", opts: macro.Options{
			Category:    macro.CategoryTime,
			Description: "Current time in a custom format (YYYY, MM, DD, HH, mm, ss, dddd, ...).",
			Args:        []macro.ArgDef{{Name: "format", Sample: "YYYY-MM-DD HH:mm"}},
			Examples:    []string{"{{datetimeformat::dddd, MMMM Do YYYY}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				return FormatMoment(ctx.Env.Time(), ctx.Arg(0)), nil
			},
		}},
		{name: "timeDiff", opts: macro.Options{
			Category:    macro.CategoryTime,
			Description: "Humanized difference between two times.",
			Args:        []macro.ArgDef{{Name: "time1"}, {Name: "time2"}},
			Examples:    []string{"{{timeDiff::2024-01-01::2024-01-03}}"},
			Handler: func(ctx *macro.Context) (any, error) {
				a, err := parseTime(ctx.Arg(0))
				if err != nil {
					return nil, err
				}
				b, err := parseTime(ctx.Arg(1))
				if err != nil {
					return nil, err
				}
				return humanize.RelTime(a, b, "ago", "from now"), nil
			},
		}},
	}
}

func timeValue(name, desc, layout string) entry {
	return value(name, macro.CategoryTime, desc, func(env *macro.Env) string {
		return env.Time().Format(layout)
	})
}

func parseUTCOffset(s string) (*time.Location, bool) {
	m := utcOffset.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	if hours < -14 || hours > 14 || minutes >= 60 {
		return nil, false
	}
	secs := hours * 3600
	if hours < 0 || strings.HasPrefix(m[1], "-") {
		secs -= minutes * 60
	} else {
		secs += minutes * 60
	}
	return time.FixedZone(strings.ToUpper(s), secs), true
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// momentTokens are matched longest first.
var momentTokens = []string{
	"YYYY", "MMMM", "dddd", "SSS",
	"MMM", "ddd", "Do",
	"YY", "MM", "DD", "dd", "HH", "hh", "mm", "ss", "ZZ",
	"M", "D", "d", "H", "h", "m", "s", "A", "a", "Z", "X", "x",
}

// FormatMoment formats t with moment.js style tokens. Text in square
// brackets is copied literally.
func FormatMoment(t time.Time, layout string) string {
	var sb strings.Builder
	for i := 0; i < len(layout); {
		if layout[i] == '[' {
			if end := strings.IndexByte(layout[i+1:], ']'); end >= 0 {
				sb.WriteString(layout[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}
		tok := ""
		for _, candidate := range momentTokens {
			if strings.HasPrefix(layout[i:], candidate) {
				tok = candidate
				break
			}
		}
		if tok == "" {
			sb.WriteByte(layout[i])
			i++
			continue
		}
		sb.WriteString(momentToken(t, tok))
		i += len(tok)
	}
	return sb.String()
}

func momentToken(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return t.Format("2006")
	case "YY":
		return t.Format("06")
	case "MMMM":
		return t.Format("January")
	case "MMM":
		return t.Format("Jan")
	case "MM":
		return t.Format("01")
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return t.Format("02")
	case "D":
		return strconv.Itoa(t.Day())
	case "Do":
		return humanize.Ordinal(t.Day())
	case "dddd":
		return t.Format("Monday")
	case "ddd":
		return t.Format("Mon")
	case "dd":
		return t.Format("Mon")[:2]
	case "d":
		return strconv.Itoa(int(t.Weekday()))
	case "HH":
		return t.Format("15")
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return t.Format("03")
	case "h":
		return t.Format("3")
	case "mm":
		return t.Format("04")
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return t.Format("05")
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "A":
		return t.Format("PM")
	case "a":
		return t.Format("pm")
	case "Z":
		return t.Format("-07:00")
	case "ZZ":
		return t.Format("-0700")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}
