package binder

import (
	"errors"
	"fmt"

	"dasbindgen/clangast"
)

// Struct is a struct or union with visible members
type Struct struct {
	entity
	tag    string
	fields []*Field

	isLocal  bool
	canCopy  bool
	canMove  bool
	canClone *bool
}

func newStruct(n *clangast.Node) (*Struct, error) {
	s := &Struct{
		entity:  entity{name: n.Name, node: n},
		tag:     n.TagUsed,
		isLocal: true,
		canCopy: true,
		canMove: true,
	}
	for _, c := range n.Children(clangast.KindField) {
		f, err := newField(s.name, len(s.fields), c)
		if err != nil {
			return nil, err
		}
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func (s *Struct) Kind() Kind {
	return KindStruct
}

// Tag is "struct" or "union"
func (s *Struct) Tag() string {
	return s.tag
}

func (s *Struct) SetIsLocal(v bool) { s.isLocal = v }
func (s *Struct) SetCanCopy(v bool) { s.canCopy = v }
func (s *Struct) SetCanMove(v bool) { s.canMove = v }

// SetCanClone pins canClone; until called it follows canMove
func (s *Struct) SetCanClone(v bool) { s.canClone = &v }

func (s *Struct) IsLocal() bool { return s.isLocal }
func (s *Struct) CanCopy() bool { return s.canCopy }
func (s *Struct) CanMove() bool { return s.canMove }

func (s *Struct) CanClone() bool {
	if s.canClone != nil {
		return *s.canClone
	}
	return s.canMove
}

// Fields returns the members the policy kept, in declaration order
func (s *Struct) Fields() []*Field {
	out := make([]*Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !f.IsIgnored() {
			out = append(out, f)
		}
	}
	return out
}

// Field looks a member up by C name, ignored or not
func (s *Struct) Field(name string) (*Field, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

func (s *Struct) Header() []string {
	return []string{fmt.Sprintf("MAKE_TYPE_FACTORY(%s, %s);", s.DasName(), s.name)}
}

func (s *Struct) Decl() []string {
	members, deferred, _ := splitFields(s)

	lines := []string{
		fmt.Sprintf("struct %sAnnotation", s.name),
		fmt.Sprintf(": public ManagedStructureAnnotation<%s,true,true> {", s.name),
		fmt.Sprintf("    %sAnnotation(ModuleLibrary & ml)", s.name),
		fmt.Sprintf("    : ManagedStructureAnnotation (\"%s\", ml) {", s.DasName()),
	}
	for _, f := range members {
		lines = append(lines, "        "+f.addField())
	}
	lines = append(lines, "    }")
	if len(deferred) > 0 {
		lines = append(lines, "    void init() {")
		for _, f := range deferred {
			lines = append(lines, "        "+f.addField())
		}
		lines = append(lines, "    }")
	}
	lines = append(lines,
		fmt.Sprintf("    virtual bool isLocal() const override { return %s; }", cppBool(s.isLocal)),
		fmt.Sprintf("    virtual bool canCopy() const override { return %s; }", cppBool(s.canCopy)),
		fmt.Sprintf("    virtual bool canMove() const override { return %s; }", cppBool(s.canMove)),
		fmt.Sprintf("    virtual bool canClone() const override { return %s; }", cppBool(s.CanClone())),
		"};",
	)
	return lines
}

func (s *Struct) Add() []string {
	if _, deferred, _ := splitFields(s); len(deferred) > 0 {
		ann := "ann_" + s.name
		return []string{
			fmt.Sprintf("auto %s = make_smart<%sAnnotation>(lib);", ann, s.name),
			fmt.Sprintf("addAnnotation(%s);", ann),
			fmt.Sprintf("%s->init();", ann),
		}
	}
	return []string{fmt.Sprintf("addAnnotation(make_smart<%sAnnotation>(lib));", s.name)}
}

// Field is a struct member. It refers to its struct by name and position
// rather than holding a pointer to it.
type Field struct {
	entity
	owner    string
	index    int
	typ      string
	bitField bool
}

func newField(owner string, index int, n *clangast.Node) (*Field, error) {
	if n.Type == nil {
		return nil, fmt.Errorf("field %q has no type", n.Name)
	}
	typ := n.Type.DesugaredQualType
	if typ == "" {
		typ = n.Type.QualType
	}
	return &Field{
		entity:   entity{name: n.Name, node: n},
		owner:    owner,
		index:    index,
		typ:      typ,
		bitField: n.IsBitfield,
	}, nil
}

// Owner is the C name of the struct the field belongs to
func (f *Field) Owner() string { return f.owner }

// Index is the position in the owner's declared field list
func (f *Field) Index() int { return f.index }

// Type is the desugared type spelling when clang gave one
func (f *Field) Type() string { return f.typ }

func (f *Field) IsBitField() bool { return f.bitField }

// IsSelfRef reports whether the field's type mentions its own struct,
// directly or through a pointer
func (f *Field) IsSelfRef() bool {
	return hasToken(f.typ, f.owner)
}

func (f *Field) addField() string {
	if f.DasName() == f.name {
		return fmt.Sprintf("addField<DAS_BIND_MANAGED_FIELD(%s)>(\"%s\");", f.name, f.name)
	}
	return fmt.Sprintf("addField<DAS_BIND_MANAGED_FIELD(%s)>(\"%s\", \"%s\");", f.name, f.DasName(), f.name)
}

// DefaultOpaqueAnnotation wraps a handle as an opaque value of known size
const DefaultOpaqueAnnotation = "DummyTypeAnnotation"

// ErrNoPtrType is reported for opaque structs that reach emission without a pointer typedef
var ErrNoPtrType = errors.New("no pointer type set; ignore it or give it a ptr type")

// OpaqueStruct is a forward-declared record, bound through a pointer typedef
type OpaqueStruct struct {
	entity
	tag        string
	ptrType    string
	annotation string
}

func newOpaqueStruct(n *clangast.Node) *OpaqueStruct {
	return &OpaqueStruct{
		entity:     entity{name: n.Name, node: n},
		tag:        n.TagUsed,
		annotation: DefaultOpaqueAnnotation,
	}
}

func (o *OpaqueStruct) Kind() Kind {
	return KindOpaqueStruct
}

func (o *OpaqueStruct) Tag() string { return o.tag }

// DasType is the script-side type name, the declared name by default
func (o *OpaqueStruct) DasType() string { return o.DasName() }

func (o *OpaqueStruct) SetDasType(name string) { o.SetDasName(name) }

func (o *OpaqueStruct) PtrType() string { return o.ptrType }

func (o *OpaqueStruct) SetPtrType(name string) { o.ptrType = name }

func (o *OpaqueStruct) Annotation() string { return o.annotation }

func (o *OpaqueStruct) SetAnnotation(name string) { o.annotation = name }

func (o *OpaqueStruct) Validate() error {
	if o.ptrType == "" {
		return &EmissionError{Kind: KindOpaqueStruct, Entity: o.name, Err: ErrNoPtrType}
	}
	return nil
}

func (o *OpaqueStruct) Header() []string {
	return []string{fmt.Sprintf("MAKE_TYPE_FACTORY(%s, %s);", o.DasType(), o.ptrType)}
}

func (o *OpaqueStruct) Add() []string {
	return []string{fmt.Sprintf("addAnnotation(make_smart<%s>(\"%s\", \"%s\", sizeof(%s), alignof(%s)));",
		o.annotation, o.DasType(), o.ptrType, o.ptrType, o.ptrType)}
}
