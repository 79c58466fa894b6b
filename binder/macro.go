package binder

import (
	"fmt"

	"dasbindgen/clangast"
)

// MacroConst is an object-like #define taken from raw header text
type MacroConst struct {
	entity
	value string
	file  string
	line  int
}

func newMacroConst(m clangast.Macro) *MacroConst {
	return &MacroConst{
		entity: entity{name: m.Name},
		value:  m.Value,
		file:   m.File,
		line:   m.Line,
	}
}

func (m *MacroConst) Kind() Kind {
	return KindMacroConst
}

// Value is the literal text after the macro name
func (m *MacroConst) Value() string { return m.value }

func (m *MacroConst) SetValue(v string) { m.value = v }

// File and Line locate the #define
func (m *MacroConst) File() string { return m.file }
func (m *MacroConst) Line() int    { return m.line }

// Raw is the generic view policy predicates run against
func (m *MacroConst) Raw() map[string]any {
	return map[string]any{
		"kind":  "MacroDefinition",
		"name":  m.name,
		"value": m.value,
		"file":  m.file,
		"line":  m.line,
	}
}

func (m *MacroConst) Add() []string {
	return []string{fmt.Sprintf("addConstant(*this, \"%s\", %s);", m.DasName(), m.value)}
}
