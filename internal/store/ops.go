// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Add implements addvar: a JSON array value gets the operand appended, two
// numbers are summed and anything else is concatenated. A missing or empty
// variable counts as zero. It returns the stored value.
func Add(v Variables, scope Scope, name, operand string) (string, error) {
	current, _, err := v.Get(scope, name)
	if err != nil {
		return "", err
	}
	next := addValues(current, operand)
	if err := v.Set(scope, name, next); err != nil {
		return "", err
	}
	return next, nil
}

func addValues(current, operand string) string {
	trimmed := strings.TrimSpace(current)
	if strings.HasPrefix(trimmed, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			arr = append(arr, operand)
			if data, err := json.Marshal(arr); err == nil {
				return string(data)
			}
		}
	}
	b, bok := parseNumber(operand)
	if trimmed == "" {
		if bok {
			return formatNumber(b)
		}
		return operand
	}
	if a, aok := parseNumber(current); aok && bok {
		return formatNumber(a + b)
	}
	return current + operand
}

// Increment adds delta to a numeric variable and returns the new value. A
// missing or empty variable counts as zero. For a non-numeric variable it
// reports false and returns the current value unchanged.
func Increment(v Variables, scope Scope, name string, delta float64) (string, bool, error) {
	current, _, err := v.Get(scope, name)
	if err != nil {
		return "", false, err
	}
	n := 0.0
	if strings.TrimSpace(current) != "" {
		var ok bool
		if n, ok = parseNumber(current); !ok {
			return current, false, nil
		}
	}
	next := formatNumber(n + delta)
	if err := v.Set(scope, name, next); err != nil {
		return "", false, err
	}
	return next, true, nil
}

// Seed sets the entries of vars that are not already set in scope.
func Seed(v Variables, scope Scope, vars map[string]string) error {
	for name, value := range vars {
		_, ok, err := v.Get(scope, name)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := v.Set(scope, name, value); err != nil {
			return err
		}
	}
	return nil
}

func parseNumber(s string) (float64, bool) {
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

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
