package binder

import (
	"regexp"
	"strings"

	"dasbindgen/clangast"
)

// BuiltinPrefix marks compiler-internal and reserved names
const BuiltinPrefix = "_"

// Kind is the closed set of entity kinds, in emission order
type Kind int

const (
	KindEnum Kind = iota
	KindOpaqueStruct
	KindStruct
	KindFunction
	KindMacroConst
)

// Kinds lists every kind in emission order
var Kinds = []Kind{KindEnum, KindOpaqueStruct, KindStruct, KindFunction, KindMacroConst}

func (k Kind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindOpaqueStruct:
		return "opaque struct"
	case KindStruct:
		return "struct"
	case KindFunction:
		return "function"
	case KindMacroConst:
		return "constant"
	}
	return "unknown"
}

// Entity is one bindable declaration.
//
// Header lines are shared glue every unit needs (type casts, type
// factories), Decl lines are definitions that live next to the
// registration, Add lines register the entity with the module.
type Entity interface {
	Kind() Kind
	Name() string
	DasName() string
	IsBuiltin() bool
	IsIgnored() bool
	Ignore()
	Node() *clangast.Node

	Validate() error
	Header() []string
	Decl() []string
	Add() []string
}

type entity struct {
	name    string
	dasName string
	ignored bool
	node    *clangast.Node
}

func (e *entity) Name() string {
	return e.name
}

// DasName is the name scripts see, the C name unless renamed
func (e *entity) DasName() string {
	if e.dasName != "" {
		return e.dasName
	}
	return e.name
}

func (e *entity) SetDasName(name string) {
	e.dasName = name
}

func (e *entity) IsBuiltin() bool {
	return strings.HasPrefix(e.name, BuiltinPrefix)
}

func (e *entity) IsIgnored() bool {
	return e.ignored
}

// Ignore excludes the entity from every list and all output. There is no way back.
func (e *entity) Ignore() {
	e.ignored = true
}

func (e *entity) Node() *clangast.Node {
	return e.node
}

func (e *entity) Validate() error {
	return nil
}

func (e *entity) Header() []string {
	return nil
}

func (e *entity) Decl() []string {
	return nil
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// hasToken reports whether name occurs in s as a whole identifier
func hasToken(s, name string) bool {
	for _, tok := range identRe.FindAllString(s, -1) {
		if tok == name {
			return true
		}
	}
	return false
}

func cppBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
