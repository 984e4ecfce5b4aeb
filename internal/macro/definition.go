// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package macro

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// Handler computes a macro's result. The returned value is converted with
// NormalizeResult.
type Handler func(ctx *Context) (any, error)

// Category groups macros for listing.
type Category string

const (
	CategoryUtility   Category = "utility"
	CategoryNames     Category = "names"
	CategoryCharacter Category = "character"
	CategoryChat      Category = "chat"
	CategoryTime      Category = "time"
	CategoryRandom    Category = "random"
	CategoryVariable  Category = "variable"
	CategoryState     Category = "state"
	CategoryDynamic   Category = "dynamic"
	CategoryMisc      Category = "misc"
)

// ArgType constrains the text of an unnamed argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeInteger ArgType = "integer"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
)

func (t ArgType) valid() bool {
	switch t {
	case "", TypeString, TypeInteger, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// ArgDef describes one unnamed argument.
type ArgDef struct {
	Name        string
	Description string
	Type        ArgType
	Optional    bool
	Default     string // Used for omitted optional arguments
	Sample      string
}

// ListSpec allows a variable number of trailing arguments.
// A Max of zero means unbounded.
type ListSpec struct {
	Min int
	Max int
}

// Alias is an alternative name for a macro.
type Alias struct {
	Name    string
	Visible bool // Listed in documentation
}

// Source records who registered a macro.
type Source struct {
	Name       string
	Extension  bool
	ThirdParty bool
}

// Options is the registration input of a macro.
type Options struct {
	Category Category

	// ArgCount declares n required string arguments. It cannot be combined
	// with Args.
	ArgCount int
	Args     []ArgDef
	List     *ListSpec

	// Lenient macros accept wrong argument counts with a warning.
	Lenient bool
	// DelayArgResolution passes nested macros to the handler unresolved.
	DelayArgResolution bool

	Description string
	Returns     string
	ReturnType  ArgType
	Examples    []string
	Aliases     []Alias

	Handler Handler

	// Source overrides the detected registration source.
	Source *Source
}

// Definition is a validated, registered macro.
type Definition struct {
	Name     string
	Category Category
	Args     []ArgDef
	List     *ListSpec

	MinArgs    int
	MaxArgs    int
	StrictArgs bool

	DelayArgResolution bool

	Description string
	Returns     string
	ReturnType  ArgType
	Examples    []string
	Aliases     []Alias
	Source      Source

	Handler Handler

	// AliasOf is the primary name when this entry is an alias.
	AliasOf      string
	AliasVisible bool
}

var namePattern = regexp.MustCompile(`^[a-zA-Z][\w-]*$`)

// ValidName reports whether name can be registered.
func ValidName(name string) bool {
	return name == "//" || namePattern.MatchString(name)
}

// NewDefinition validates opts and builds a definition. It does not register it.
func NewDefinition(name string, opts Options) (*Definition, error) {
	name = strings.TrimSpace(name)
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("%w: %s: handler is required", ErrInvalidDefinition, name)
	}
	if opts.ArgCount < 0 {
		return nil, fmt.Errorf("%w: %s: negative argument count", ErrInvalidDefinition, name)
	}
	if opts.ArgCount > 0 && len(opts.Args) > 0 {
		return nil, fmt.Errorf("%w: %s: ArgCount and Args are mutually exclusive", ErrInvalidDefinition, name)
	}
	if opts.List != nil && (opts.List.Min < 0 || opts.List.Max < 0 || (opts.List.Max > 0 && opts.List.Max < opts.List.Min)) {
		return nil, fmt.Errorf("%w: %s: invalid list bounds %d..%d", ErrInvalidDefinition, name, opts.List.Min, opts.List.Max)
	}

	args := opts.Args
	if opts.ArgCount > 0 {
		args = make([]ArgDef, opts.ArgCount)
		for i := range args {
			args[i] = ArgDef{Name: fmt.Sprintf("arg%d", i+1), Type: TypeString}
		}
	}

	min := 0
	optional := false
	for i, a := range args {
		if !a.Type.valid() {
			return nil, fmt.Errorf("%w: %s: argument %d has unknown type %q", ErrInvalidDefinition, name, i+1, a.Type)
		}
		if a.Optional {
			optional = true
			continue
		}
		if optional {
			return nil, fmt.Errorf("%w: %s: required argument %d follows an optional one", ErrInvalidDefinition, name, i+1)
		}
		min++
	}
	if !opts.ReturnType.valid() {
		return nil, fmt.Errorf("%w: %s: unknown return type %q", ErrInvalidDefinition, name, opts.ReturnType)
	}
	for _, a := range opts.Aliases {
		if !ValidName(a.Name) {
			return nil, fmt.Errorf("%w: alias %q of %s", ErrInvalidName, a.Name, name)
		}
	}

	def := &Definition{
		Name:               name,
		Category:           opts.Category,
		Args:               append([]ArgDef(nil), args...),
		MinArgs:            min,
		MaxArgs:            len(args),
		StrictArgs:         !opts.Lenient,
		DelayArgResolution: opts.DelayArgResolution,
		Description:        opts.Description,
		Returns:            opts.Returns,
		ReturnType:         opts.ReturnType,
		Examples:           append([]string(nil), opts.Examples...),
		Aliases:            append([]Alias(nil), opts.Aliases...),
		Handler:            opts.Handler,
	}
	if def.Category == "" {
		def.Category = CategoryMisc
	}
	if def.ReturnType == "" {
		def.ReturnType = TypeString
	}
	if opts.List != nil {
		l := *opts.List
		def.List = &l
	}
	if opts.Source != nil {
		def.Source = *opts.Source
	}
	return def, nil
}

// Primary returns the primary name, following alias entries.
func (d *Definition) Primary() string {
	if d.AliasOf != "" {
		return d.AliasOf
	}
	return d.Name
}

// IsAlias reports whether the entry is an alias.
func (d *Definition) IsAlias() bool { return d.AliasOf != "" }

// Bounds returns the accepted argument count range. Max is -1 when unbounded.
func (d *Definition) Bounds() (min, max int) {
	min, max = d.MinArgs, d.MaxArgs
	if d.List != nil {
		min += d.List.Min
		if d.List.Max == 0 {
			return min, -1
		}
		max += d.List.Max
	}
	return min, max
}

// AcceptsScope reports whether a call with argc inline arguments can take
// scoped content as one more argument.
func (d *Definition) AcceptsScope(argc int) bool {
	if d.List != nil {
		return false
	}
	n := argc + 1
	return n >= d.MinArgs && n <= d.MaxArgs
}

// Signature renders a usage line such as {{setvar::name::value}}.
func (d *Definition) Signature() string {
	var sb strings.Builder
	sb.WriteString("{{")
	sb.WriteString(d.Name)
	for _, a := range d.Args {
		sb.WriteString("::")
		if a.Optional {
			sb.WriteString("[" + a.Name + "]")
		} else {
			sb.WriteString(a.Name)
		}
	}
	if d.List != nil {
		sb.WriteString("::...")
	}
	sb.WriteString("}}")
	return sb.String()
}

func (d *Definition) aliasEntry(a Alias) *Definition {
	c := *d
	c.Name = a.Name
	c.AliasOf = d.Name
	c.AliasVisible = a.Visible
	c.Aliases = nil
	return &c
}

var modulePrefix = func() string {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc).Name()
	if i := strings.Index(fn, "/internal/"); i >= 0 {
		return fn[:i]
	}
	return ""
}()

// CallerSource classifies the function skip frames above the caller.
// Code under this module's internal tree is core, other packages in the
// module are extensions, and everything else is third-party.
func CallerSource(skip int) Source {
	pc, _, _, ok := runtime.Caller(skip + 1)
	if !ok {
		return Source{Name: "unknown", ThirdParty: true}
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return Source{Name: "unknown", ThirdParty: true}
	}
	name := fn.Name()
	pkg := name
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		if j := strings.Index(pkg[i:], "."); j >= 0 {
			pkg = pkg[:i+j]
		}
	}
	switch {
	case modulePrefix != "" && strings.HasPrefix(pkg, modulePrefix+"/internal/"):
		return Source{Name: "core"}
	case modulePrefix != "" && strings.HasPrefix(pkg, modulePrefix):
		return Source{Name: pkg, Extension: true}
	default:
		return Source{Name: pkg, Extension: true, ThirdParty: true}
	}
}
