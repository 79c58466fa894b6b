package binder

import (
	"fmt"
)

// splitFields sorts the kept fields of s into the three registration paths.
// Plain members register in the annotation constructor, self-referencing
// ones in init() once the annotation is in the module, bit-fields only
// through accessor functions. Relative order inside each group is the
// declaration order.
func splitFields(s *Struct) (members, deferred, bitFields []*Field) {
	for _, f := range s.Fields() {
		switch {
		case f.IsBitField():
			bitFields = append(bitFields, f)
		case f.IsSelfRef():
			deferred = append(deferred, f)
		default:
			members = append(members, f)
		}
	}
	return members, deferred, bitFields
}

// AccessorNames returns the getter and setter names for a bit-field
func AccessorNames(structName, fieldName string) (getter, setter string) {
	return fmt.Sprintf("%s_get_%s", structName, fieldName), fmt.Sprintf("%s_set_%s", structName, fieldName)
}

// bitFieldAccessors synthesizes the getter/setter pair that stands in for a
// bit-field, which cannot be bound as an addressable member
func bitFieldAccessors(s *Struct, f *Field) []*Function {
	getter, setter := AccessorNames(s.name, f.name)
	dasGetter, dasSetter := AccessorNames(s.DasName(), f.DasName())

	get := &Function{
		entity:      entity{name: getter, dasName: dasGetter},
		owner:       s.name,
		field:       f.name,
		signature:   fmt.Sprintf("%s (const %s &)", f.typ, s.name),
		returnType:  f.typ,
		params:      []Param{{Name: "self", Type: fmt.Sprintf("const %s &", s.name)}},
		sideEffects: SideEffectsNone,
		body: []string{
			fmt.Sprintf("inline %s %s(const %s & self) {", f.typ, getter, s.name),
			fmt.Sprintf("    return self.%s;", f.name),
			"}",
		},
	}
	set := &Function{
		entity:      entity{name: setter, dasName: dasSetter},
		owner:       s.name,
		field:       f.name,
		signature:   fmt.Sprintf("void (%s &, %s)", s.name, f.typ),
		returnType:  "void",
		params:      []Param{{Name: "self", Type: s.name + " &"}, {Name: "value", Type: f.typ}},
		sideEffects: SideEffectsModifyArgument,
		body: []string{
			fmt.Sprintf("inline void %s(%s & self, %s value) {", setter, s.name, f.typ),
			fmt.Sprintf("    self.%s = value;", f.name),
			"}",
		},
	}
	return []*Function{get, set}
}

// Accessors returns the synthesized functions for every kept bit-field of s
func Accessors(s *Struct) []*Function {
	_, _, bitFields := splitFields(s)
	var out []*Function
	for _, f := range bitFields {
		out = append(out, bitFieldAccessors(s, f)...)
	}
	return out
}

// HasDeferredFields reports whether s registers part of its members in init()
func HasDeferredFields(s *Struct) bool {
	_, deferred, _ := splitFields(s)
	return len(deferred) > 0
}
