// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"

	"github.com/zhu748/sillytavernapk-sub003/internal/diag"
)

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// Execute runs a call against its definition. Strict arity and type
// violations return a *RuntimeError; lenient ones are logged and the call
// proceeds with truncated arguments. A panicking handler yields an
// *InternalError. The error result never carries partial output.
func (r *Registry) Execute(call *Call) (result string, err error) {
	def := call.Definition
	if def == nil {
		def = r.Lookup(call.Env, call.Name)
	}
	if def == nil {
		return "", &RuntimeError{Macro: call.Name, Err: ErrUnknownMacro}
	}

	warnLog := diag.Runtime(r.logger).With("macro", call.Name, "offset", call.Offset)
	args := call.Args

	min, max := def.Bounds()
	if len(args) < min || (max >= 0 && len(args) > max) {
		msg := fmt.Sprintf("expected %s, got %d", arityText(min, max), len(args))
		if def.StrictArgs {
			return "", &RuntimeError{Macro: call.Name, Err: fmt.Errorf("%w: %s", ErrArity, msg)}
		}
		warnLog.Warn("wrong number of arguments", "detail", msg)
		if max >= 0 && len(args) > max {
			args = args[:max]
		}
	}

	unnamed := args
	if len(unnamed) > def.MaxArgs {
		unnamed = args[:def.MaxArgs]
	}
	for i, v := range unnamed {
		if terr := checkType(def.Args[i], v); terr != nil {
			if def.StrictArgs {
				return "", runtimeErrorf(call.Name, ErrArgType, "argument %d (%s): %v", i+1, def.Args[i].Name, terr)
			}
			warnLog.Warn("invalid argument type", "arg", def.Args[i].Name, "detail", terr)
		}
	}

	ctx := &Context{
		Name:        call.Name,
		Definition:  def,
		Args:        args,
		UnnamedArgs: unnamed,
		Flags:       call.Flags,
		Scoped:      call.Scoped,
		Raw:         call.Raw,
		RawInner:    call.RawInner,
		Env:         call.Env,
		Offset:      call.Offset,
		argOffsets:  call.ArgOffsets,
		resolver:    call.Resolve,
		warn:        warnLog.Warn,
		lookup: func(name string) bool {
			return r.Lookup(call.Env, name) != nil
		},
	}
	if def.List != nil {
		ctx.List = append([]string{}, args[len(unnamed):]...)
	}
	if ctx.Env == nil {
		ctx.Env = &Env{FirstIncludedMessageID: -1}
	}

	defer func() {
		if p := recover(); p != nil {
			result = ""
			err = &InternalError{Macro: call.Name, Err: fmt.Errorf("panic: %v\n%s", p, debug.Stack())}
		}
	}()

	v, herr := def.Handler(ctx)
	if herr != nil {
		var re *RuntimeError
		var ie *InternalError
		if errors.As(herr, &re) || errors.As(herr, &ie) {
			return "", herr
		}
		return "", &RuntimeError{Macro: call.Name, Err: herr}
	}
	return NormalizeResult(v), nil
}

func arityText(min, max int) string {
	switch {
	case max < 0:
		return fmt.Sprintf("at least %d", min)
	case min == max:
		return fmt.Sprintf("exactly %d", min)
	default:
		return fmt.Sprintf("%d to %d", min, max)
	}
}

func checkType(a ArgDef, v string) error {
	switch a.Type {
	case TypeInteger:
		if !integerPattern.MatchString(v) {
			return fmt.Errorf("%q is not an integer", v)
		}
	case TypeNumber:
		if _, ok := ParseNumber(v); !ok {
			return fmt.Errorf("%q is not a number", v)
		}
	case TypeBoolean:
		if !IsTrueBoolean(v) && !IsFalseBoolean(v) {
			return fmt.Errorf("%q is not a boolean", v)
		}
	}
	return nil
}
