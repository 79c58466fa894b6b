package binder

import (
	"fmt"

	"dasbindgen/clangast"
)

// Enum is a named C enum. Enumerator values are read back from a native
// array at registration time, so explicit initializers never matter here.
type Enum struct {
	entity
	fields []string
}

func newEnum(n *clangast.Node) *Enum {
	e := &Enum{entity: entity{name: n.Name, node: n}}
	for _, c := range n.Children(clangast.KindEnumConstant) {
		e.fields = append(e.fields, c.Name)
	}
	return e
}

func (e *Enum) Kind() Kind {
	return KindEnum
}

// Fields returns the enumerator names in source order
func (e *Enum) Fields() []string {
	return e.fields
}

func (e *Enum) Header() []string {
	return []string{fmt.Sprintf("DAS_BIND_ENUM_CAST(%s);", e.name)}
}

func (e *Enum) Decl() []string {
	lines := []string{
		fmt.Sprintf("class Enumeration%s : public Enumeration {", e.name),
		"public:",
		fmt.Sprintf("    Enumeration%s() : Enumeration(\"%s\") {", e.name, e.DasName()),
		"        external = true;",
		fmt.Sprintf("        cppName = \"%s\";", e.name),
		fmt.Sprintf("        baseType = (Type) ToBasicType< underlying_type< %s >::type >::type;", e.name),
		fmt.Sprintf("        %s enumArray[] = {", e.name),
	}
	for _, f := range e.fields {
		lines = append(lines, fmt.Sprintf("            %s,", f))
	}
	lines = append(lines,
		"        };",
		"        static const char * enumArrayName[] = {",
	)
	for _, f := range e.fields {
		lines = append(lines, fmt.Sprintf("            \"%s\",", f))
	}
	lines = append(lines,
		"        };",
		fmt.Sprintf("        for (uint32_t i = 0; i < %d; ++i) {", len(e.fields)),
		"            addI(enumArrayName[i], int64_t(enumArray[i]), LineInfo());",
		"        }",
		"    }",
		"};",
	)
	return lines
}

func (e *Enum) Add() []string {
	return []string{fmt.Sprintf("addEnumeration(make_smart<Enumeration%s>());", e.name)}
}
