// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned for names that are not valid identifiers.
	ErrInvalidName = errors.New("invalid macro name")
	// ErrInvalidDefinition is returned for malformed registration options.
	ErrInvalidDefinition = errors.New("invalid macro definition")
	// ErrUnknownMacro is returned when executing a name with no definition.
	ErrUnknownMacro = errors.New("unknown macro")
	// ErrArity is wrapped by RuntimeError for argument count violations.
	ErrArity = errors.New("wrong number of arguments")
	// ErrArgType is wrapped by RuntimeError for argument type violations.
	ErrArgType = errors.New("invalid argument type")
)

// RuntimeError is an expected failure of a single macro call. The macro is
// left unresolved in the output and a warning is logged.
type RuntimeError struct {
	Macro string
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("macro %q: %v", e.Macro, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// InternalError is an unexpected failure inside a handler, such as a panic.
// It is logged on the internal channel.
type InternalError struct {
	Macro string
	Err   error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("macro %q: internal error: %v", e.Macro, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// IsInternal reports whether err is, or wraps, an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func runtimeErrorf(name string, base error, format string, args ...any) *RuntimeError {
	return &RuntimeError{Macro: name, Err: fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))}
}
