// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

//go:build !(js && wasm)

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Alt+key inserts template syntax: Alt+key sends ESC (0x1b) followed by the key byte
var altKeyMappings = map[byte]string{
	'{': "{{",       // Alt+{ - open a macro
	'}': "}}",       // Alt+} - close a macro
	':': "::",       // Alt+: - argument separator
	'e': "{{else}}", // Alt+e - else branch
	'c': "{{// ",    // Alt+c - comment
}

// runREPL uses raw mode with line editing when in is a terminal and falls
// back to the basic line reader otherwise.
func runREPL(in io.Reader, out io.Writer, eval func(string) string) error {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return runBasicREPL(in, out, eval)
	}
	return runRawREPL(f, out, eval)
}

// runRawREPL handles TTY input with Alt+key support
func runRawREPL(in *os.File, out io.Writer, eval func(string) string) error {
	fd := int(in.Fd())

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set raw mode: %v\n", err)
		return runBasicREPL(in, out, eval)
	}
	defer term.Restore(fd, oldState)

	fmt.Fprint(out, "Alt+{ {{  Alt+} }}  Alt+: ::  Alt+e {{else}}  Alt+c {{//\r\n\r\n")

	var lines lineJoiner
	for {
		fmt.Fprint(out, lines.prompt())

		line, eof := readLineRaw(in, out)
		if eof {
			fmt.Fprint(out, "\r\n")
			return nil
		}

		input, ok := lines.add(line)
		if !ok || strings.TrimSpace(input) == "" {
			continue
		}

		if result := eval(input); result != "" {
			// Replace newlines with \r\n for raw mode display
			fmt.Fprint(out, strings.ReplaceAll(result, "\n", "\r\n")+"\r\n")
		}
	}
}

// readLineRaw reads a line in raw mode with Alt+key support
// Returns the line and whether EOF was encountered
func readLineRaw(in io.Reader, out io.Writer) (string, bool) {
	var line []rune
	cursor := 0 // Position in line (for arrow key navigation)
	buf := make([]byte, 1)

	readByte := func() (byte, bool) {
		n, err := in.Read(buf)
		if err != nil || n == 0 {
			return 0, false
		}
		return buf[0], true
	}

	// Helper to redraw line from cursor position
	redrawFromCursor := func() {
		// Clear from cursor to end of line
		fmt.Fprint(out, "\x1b[K")
		fmt.Fprint(out, string(line[cursor:]))
		// Move cursor back to position
		if cursor < len(line) {
			fmt.Fprintf(out, "\x1b[%dD", len(line)-cursor)
		}
	}

	insert := func(runes []rune) {
		next := make([]rune, 0, len(line)+len(runes))
		next = append(next, line[:cursor]...)
		next = append(next, runes...)
		next = append(next, line[cursor:]...)
		line = next
		cursor += len(runes)
		fmt.Fprint(out, string(runes))
		if cursor < len(line) {
			redrawFromCursor()
		}
	}

	for {
		b, ok := readByte()
		if !ok {
			return string(line), true
		}

		switch b {
		case 0x04: // Ctrl+D
			if len(line) == 0 {
				return "", true
			}
			// Delete character at cursor (like Delete key)
			if cursor < len(line) {
				line = append(line[:cursor], line[cursor+1:]...)
				redrawFromCursor()
			}

		case 0x03: // Ctrl+C
			fmt.Fprint(out, "^C\r\n")
			return "", false

		case 0x0d, 0x0a: // Enter (CR or LF)
			fmt.Fprint(out, "\r\n")
			return string(line), false

		case 0x7f, 0x08: // Backspace (DEL or BS)
			if cursor > 0 {
				cursor--
				line = append(line[:cursor], line[cursor+1:]...)
				fmt.Fprint(out, "\b")
				redrawFromCursor()
			}

		case 0x1b: // ESC - could be Alt+key or arrow key sequence
			next, ok := readByte()
			if !ok {
				continue
			}

			if next != '[' {
				if snippet, ok := altKeyMappings[next]; ok {
					insert([]rune(snippet))
				}
				continue
			}

			// Arrow key sequence: ESC [ A/B/C/D
			key, ok := readByte()
			if !ok {
				continue
			}
			switch key {
			case 'C': // Right arrow
				if cursor < len(line) {
					cursor++
					fmt.Fprint(out, "\x1b[C")
				}
			case 'D': // Left arrow
				if cursor > 0 {
					cursor--
					fmt.Fprint(out, "\x1b[D")
				}
			case '3': // Delete key: ESC [ 3 ~
				if tilde, ok := readByte(); ok && tilde == '~' && cursor < len(line) {
					line = append(line[:cursor], line[cursor+1:]...)
					redrawFromCursor()
				}
			}

		case 0x01: // Ctrl+A - beginning of line
			if cursor > 0 {
				fmt.Fprintf(out, "\x1b[%dD", cursor)
				cursor = 0
			}

		case 0x05: // Ctrl+E - end of line
			if cursor < len(line) {
				fmt.Fprintf(out, "\x1b[%dC", len(line)-cursor)
				cursor = len(line)
			}

		case 0x0b: // Ctrl+K - kill to end of line
			if cursor < len(line) {
				line = line[:cursor]
				fmt.Fprint(out, "\x1b[K")
			}

		case 0x15: // Ctrl+U - kill to beginning of line
			if cursor > 0 {
				fmt.Fprintf(out, "\x1b[%dD", cursor)
				line = line[cursor:]
				cursor = 0
				redrawFromCursor()
			}

		default:
			if b >= 0x20 && b < 0x7f {
				insert([]rune{rune(b)})
			} else if b >= 0x80 {
				// UTF-8 multi-byte sequence - read remaining bytes
				utfBuf := []byte{b}
				numBytes := 0
				switch {
				case b&0xE0 == 0xC0:
					numBytes = 1
				case b&0xF0 == 0xE0:
					numBytes = 2
				case b&0xF8 == 0xF0:
					numBytes = 3
				}
				for i := 0; i < numBytes; i++ {
					c, ok := readByte()
					if !ok {
						break
					}
					utfBuf = append(utfBuf, c)
				}
				insert([]rune(string(utfBuf))[:1])
			}
		}
	}
}
