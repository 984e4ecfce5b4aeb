// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

//go:build js && wasm

package main

import "io"

// No raw terminal in WASM mode
func runREPL(in io.Reader, out io.Writer, eval func(string) string) error {
	return runBasicREPL(in, out, eval)
}
