package binder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dasbindgen/clangast"
)

// testPolicy counts hook calls per entity and lets a test hook in
type testPolicy struct {
	macros []string
	calls  map[string]int
	passes int

	onEnum     func(*Enum) error
	onStruct   func(*Struct) error
	onField    func(*Field) error
	onOpaque   func(*OpaqueStruct) error
	onFunction func(*Function) error
	onMacro    func(*MacroConst) error
	onPass     func(*TranslationUnit) error
}

func newTestPolicy() *testPolicy {
	return &testPolicy{calls: make(map[string]int)}
}

func (p *testPolicy) ModuleName() string     { return "shapes" }
func (p *testPolicy) Title() string          { return "" }
func (p *testPolicy) HeaderInclude() string  { return "" }
func (p *testPolicy) MacroHeaders() []string { return p.macros }
func (p *testPolicy) SaveAST() bool          { return false }

func (p *testPolicy) ConfigureEnum(e *Enum) error {
	p.calls["enum:"+e.Name()]++
	if p.onEnum != nil {
		return p.onEnum(e)
	}
	return nil
}

func (p *testPolicy) ConfigureStruct(s *Struct) error {
	p.calls["struct:"+s.Name()]++
	if p.onStruct != nil {
		return p.onStruct(s)
	}
	return nil
}

func (p *testPolicy) ConfigureStructField(f *Field) error {
	p.calls["field:"+f.Owner()+"."+f.Name()]++
	if p.onField != nil {
		return p.onField(f)
	}
	return nil
}

func (p *testPolicy) ConfigureOpaqueStruct(o *OpaqueStruct) error {
	p.calls["opaque:"+o.Name()]++
	if p.onOpaque != nil {
		return p.onOpaque(o)
	}
	return nil
}

func (p *testPolicy) ConfigureFunction(f *Function) error {
	p.calls["function:"+f.Name()]++
	if p.onFunction != nil {
		return p.onFunction(f)
	}
	return nil
}

func (p *testPolicy) ConfigureMacroConst(m *MacroConst) error {
	p.calls["macro:"+m.Name()]++
	if p.onMacro != nil {
		return p.onMacro(m)
	}
	return nil
}

func (p *testPolicy) CustomPass(tu *TranslationUnit) error {
	p.passes++
	if p.onPass != nil {
		return p.onPass(tu)
	}
	return nil
}

func loadShapes(t *testing.T) *clangast.Node {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "shapes.json"))
	require.NoError(t, err)
	root, _, err := clangast.Parse(data)
	require.NoError(t, err)
	return root
}

func names[T Entity](list []T) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Name()
	}
	return out
}

func TestClassify(t *testing.T) {
	root := loadShapes(t)
	want := []string{
		"",              // implicit typedef
		"struct",        // __sFILE, filtered later as builtin
		"enum",          // Color
		"",              // anonymous enum
		"struct",        // Node
		"struct",        // Flags
		"opaque struct", // Handle
		"",              // HandlePtr typedef
		"opaque struct", // Window
		"opaque struct", // Point forward declaration
		"struct",        // Point
		"",              // Point2 typedef
		"",              // Vec2 typedef
		"function",
		"function",
		"function",
		"function",
		"function",
		"function",
	}
	require.Len(t, root.Inner, len(want))

	for i, n := range root.Inner {
		ent, err := Classify(n)
		require.NoError(t, err, n.Summary())
		got := ""
		if ent != nil {
			got = ent.Kind().String()
		}
		assert.Equal(t, want[i], got, n.Summary())
	}

	// only fields make a definition, a doc comment does not
	documented := &clangast.Node{
		Kind: clangast.KindRecord, Name: "Handle", TagUsed: "struct",
		Inner: []*clangast.Node{{Kind: "FullComment"}},
	}
	ent, err := Classify(documented)
	require.NoError(t, err)
	assert.IsType(t, &OpaqueStruct{}, ent)
}

func TestClassifyBrokenNodes(t *testing.T) {
	cases := map[string]*clangast.Node{
		"field without type": {
			Kind: clangast.KindRecord, Name: "Broken", TagUsed: "struct",
			Inner: []*clangast.Node{{Kind: clangast.KindField, Name: "x"}},
		},
		"function without type": {Kind: clangast.KindFunction, Name: "broken"},
		"function type without parameters": {
			Kind: clangast.KindFunction, Name: "broken", Type: &clangast.Type{QualType: "int"},
		},
	}
	for name, n := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(n)
			assert.Error(t, err)
		})
	}
}

func TestDiscover(t *testing.T) {
	p := newTestPolicy()
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	require.NoError(t, tu.Discover())

	enums, err := tu.Enums()
	require.NoError(t, err)
	assert.Equal(t, []string{"Color"}, names(enums))

	structs, err := tu.Structs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Node", "Flags", "Point"}, names(structs))

	opaque, err := tu.OpaqueStructs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Handle", "Window"}, names(opaque))
	assert.Equal(t, "HandlePtr", opaque[0].PtrType())
	assert.Empty(t, opaque[1].PtrType())

	functions, err := tu.Functions()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"make_point", "node_count", "first_node", "log_message",
		"Flags_get_enabled", "Flags_set_enabled",
	}, names(functions))

	assert.True(t, functions[0].CopyOrMove(), "Vec2 resolves to struct Point")
	assert.False(t, functions[1].CopyOrMove())
	assert.False(t, functions[2].CopyOrMove(), "pointers are not returned by value")
	assert.True(t, functions[3].IsVariadic())
	assert.Equal(t, []Param{{Name: "x", Type: "float"}, {Name: "y", Type: "float"}}, functions[0].Params())

	assert.Equal(t, 1, p.passes)
}

func TestListsAreMemoized(t *testing.T) {
	p := newTestPolicy()
	tu := NewTranslationUnit(loadShapes(t), p, nil)

	first, err := tu.Structs()
	require.NoError(t, err)
	second, err := tu.Structs()
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Same(t, first[i], second[i])
	}

	// emission walks fields more than once
	for _, s := range first {
		_ = s.Decl()
		_ = s.Add()
		_ = Accessors(s)
	}

	fns1, err := tu.Functions()
	require.NoError(t, err)
	fns2, err := tu.Functions()
	require.NoError(t, err)
	for i := range fns1 {
		assert.Same(t, fns1[i], fns2[i])
	}

	require.NoError(t, tu.Discover())
	require.NoError(t, tu.Discover())
	assert.Equal(t, 1, p.passes)

	for key, n := range p.calls {
		assert.Equal(t, 1, n, key)
	}
	assert.Equal(t, 1, p.calls["field:Node.next"])
	assert.Equal(t, 1, p.calls["function:node_count"], "redeclarations are configured once")
}

func TestBuiltinsNeverReachPolicy(t *testing.T) {
	p := newTestPolicy()
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	discovered, err := tu.Discovered()
	require.NoError(t, err)

	for _, ent := range discovered {
		assert.False(t, strings.HasPrefix(ent.Name(), BuiltinPrefix), ent.Name())
	}
	for key := range p.calls {
		name := key[strings.Index(key, ":")+1:]
		assert.False(t, strings.HasPrefix(name, BuiltinPrefix), key)
	}
}

func TestOpaqueStructYieldsToDefinition(t *testing.T) {
	p := newTestPolicy()
	p.onStruct = func(s *Struct) error {
		if s.Name() == "Point" {
			s.Ignore()
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)

	structs, err := tu.Structs()
	require.NoError(t, err)
	opaque, err := tu.OpaqueStructs()
	require.NoError(t, err)

	assert.NotContains(t, names(structs), "Point")
	assert.NotContains(t, names(opaque), "Point", "an ignored definition still suppresses the forward declaration")
	assert.Zero(t, p.calls["opaque:Point"])
}

func TestOpaqueAndRegularPrecedence(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	structs, err := tu.Structs()
	require.NoError(t, err)
	opaque, err := tu.OpaqueStructs()
	require.NoError(t, err)

	count := 0
	for _, n := range append(names(structs), names(opaque)...) {
		if n == "Point" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIgnoreIsAStatus(t *testing.T) {
	p := newTestPolicy()
	p.onFunction = func(f *Function) error {
		if f.Name() == "log_message" {
			f.Ignore()
		}
		return nil
	}
	p.onEnum = func(e *Enum) error {
		e.Ignore()
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)

	functions, err := tu.Functions()
	require.NoError(t, err)
	assert.NotContains(t, names(functions), "log_message")

	enums, err := tu.Enums()
	require.NoError(t, err)
	assert.Empty(t, enums)

	discovered, err := tu.Discovered()
	require.NoError(t, err)
	var ignored []string
	for _, ent := range discovered {
		if ent.IsIgnored() {
			ignored = append(ignored, ent.Name())
		}
	}
	assert.ElementsMatch(t, []string{"Color", "log_message"}, ignored)
}

func TestBitFieldAccessors(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	structs, err := tu.Structs()
	require.NoError(t, err)
	flags := structs[1]
	require.Equal(t, "Flags", flags.Name())

	accessors := Accessors(flags)
	require.Len(t, accessors, 2)

	get, set := accessors[0], accessors[1]
	assert.Equal(t, "Flags_get_enabled", get.Name())
	assert.Equal(t, SideEffectsNone, get.SideEffects())
	assert.Equal(t, "unsigned int", get.ReturnType())
	assert.Equal(t, "Flags_set_enabled", set.Name())
	assert.Equal(t, SideEffectsModifyArgument, set.SideEffects())
	assert.True(t, get.IsSynthesized())

	want := []string{
		"inline unsigned int Flags_get_enabled(const Flags & self) {",
		"    return self.enabled;",
		"}",
	}
	if diff := cmp.Diff(want, get.Decl()); diff != "" {
		t.Errorf("getter mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t,
		[]string{`addExtern<DAS_BIND_FUN(Flags_set_enabled)>(*this, lib, "Flags_set_enabled", SideEffects::modifyArgument, "Flags_set_enabled");`},
		set.Add())

	decl := strings.Join(flags.Decl(), "\n")
	assert.Contains(t, decl, "DAS_BIND_MANAGED_FIELD(mode)")
	assert.NotContains(t, decl, "enabled")
}

func TestRenamedBitFieldAccessors(t *testing.T) {
	p := newTestPolicy()
	p.onStruct = func(s *Struct) error {
		s.SetDasName("DasFlags")
		return nil
	}
	p.onField = func(f *Field) error {
		if f.Name() == "enabled" {
			f.SetDasName("on")
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	functions, err := tu.Functions()
	require.NoError(t, err)

	last := functions[len(functions)-1]
	assert.Equal(t, "Flags_set_enabled", last.Name())
	assert.Equal(t, "DasFlags_set_on", last.DasName())
}

func TestSelfReferenceDeferral(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	structs, err := tu.Structs()
	require.NoError(t, err)
	node := structs[0]
	require.Equal(t, "Node", node.Name())

	assert.True(t, HasDeferredFields(node))
	assert.Equal(t, []string{"MAKE_TYPE_FACTORY(Node, Node);"}, node.Header())

	want := []string{
		"struct NodeAnnotation",
		": public ManagedStructureAnnotation<Node,true,true> {",
		"    NodeAnnotation(ModuleLibrary & ml)",
		`    : ManagedStructureAnnotation ("Node", ml) {`,
		`        addField<DAS_BIND_MANAGED_FIELD(value)>("value");`,
		`        addField<DAS_BIND_MANAGED_FIELD(weight)>("weight");`,
		"    }",
		"    void init() {",
		`        addField<DAS_BIND_MANAGED_FIELD(next)>("next");`,
		"    }",
		"    virtual bool isLocal() const override { return true; }",
		"    virtual bool canCopy() const override { return true; }",
		"    virtual bool canMove() const override { return true; }",
		"    virtual bool canClone() const override { return true; }",
		"};",
	}
	if diff := cmp.Diff(want, node.Decl()); diff != "" {
		t.Errorf("annotation mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{
		"auto ann_Node = make_smart<NodeAnnotation>(lib);",
		"addAnnotation(ann_Node);",
		"ann_Node->init();",
	}, node.Add())
}

func TestSelfReferenceCollapses(t *testing.T) {
	p := newTestPolicy()
	p.onField = func(f *Field) error {
		if f.Name() == "next" {
			f.Ignore()
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	structs, err := tu.Structs()
	require.NoError(t, err)
	node := structs[0]

	assert.False(t, HasDeferredFields(node))
	assert.Equal(t, []string{"addAnnotation(make_smart<NodeAnnotation>(lib));"}, node.Add())
	assert.NotContains(t, strings.Join(node.Decl(), "\n"), "init()")

	f, ok := node.Field("next")
	require.True(t, ok)
	assert.True(t, f.IsIgnored())
	assert.Equal(t, 1, f.Index())
	assert.Len(t, node.Fields(), 2)
}

func TestStructFlags(t *testing.T) {
	p := newTestPolicy()
	p.onStruct = func(s *Struct) error {
		if s.Name() == "Point" {
			s.SetIsLocal(false)
			s.SetCanMove(false)
			s.SetDasName("Vec2")
		}
		return nil
	}
	p.onField = func(f *Field) error {
		if f.Owner() == "Point" && f.Name() == "x" {
			f.SetDasName("px")
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	structs, err := tu.Structs()
	require.NoError(t, err)
	point := structs[2]

	assert.False(t, point.CanClone(), "clone follows move")
	decl := strings.Join(point.Decl(), "\n")
	assert.Contains(t, decl, `ManagedStructureAnnotation ("Vec2", ml)`)
	assert.Contains(t, decl, `addField<DAS_BIND_MANAGED_FIELD(x)>("px", "x");`)
	assert.Contains(t, decl, "isLocal() const override { return false; }")
	assert.Contains(t, decl, "canClone() const override { return false; }")
	assert.Equal(t, []string{"MAKE_TYPE_FACTORY(Vec2, Point);"}, point.Header())

	point.SetCanClone(true)
	assert.True(t, point.CanClone())
}

func TestColorEnum(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	enums, err := tu.Enums()
	require.NoError(t, err)
	require.Len(t, enums, 1)
	color := enums[0]

	assert.Equal(t, []string{"RED", "GREEN", "BLUE"}, color.Fields())
	assert.Equal(t, []string{"DAS_BIND_ENUM_CAST(Color);"}, color.Header())
	assert.Equal(t, []string{"addEnumeration(make_smart<EnumerationColor>());"}, color.Add())

	want := []string{
		"class EnumerationColor : public Enumeration {",
		"public:",
		`    EnumerationColor() : Enumeration("Color") {`,
		"        external = true;",
		`        cppName = "Color";`,
		"        baseType = (Type) ToBasicType< underlying_type< Color >::type >::type;",
		"        Color enumArray[] = {",
		"            RED,",
		"            GREEN,",
		"            BLUE,",
		"        };",
		"        static const char * enumArrayName[] = {",
		`            "RED",`,
		`            "GREEN",`,
		`            "BLUE",`,
		"        };",
		"        for (uint32_t i = 0; i < 3; ++i) {",
		"            addI(enumArrayName[i], int64_t(enumArray[i]), LineInfo());",
		"        }",
		"    }",
		"};",
	}
	if diff := cmp.Diff(want, color.Decl()); diff != "" {
		t.Errorf("enumeration mismatch (-want +got):\n%s", diff)
	}
}

func TestOpaqueStructEmission(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	opaque, err := tu.OpaqueStructs()
	require.NoError(t, err)
	handle, window := opaque[0], opaque[1]

	require.NoError(t, handle.Validate())
	assert.Equal(t, []string{"MAKE_TYPE_FACTORY(Handle, HandlePtr);"}, handle.Header())
	assert.Equal(t,
		[]string{`addAnnotation(make_smart<DummyTypeAnnotation>("Handle", "HandlePtr", sizeof(HandlePtr), alignof(HandlePtr)));`},
		handle.Add())

	err = window.Validate()
	var eerr *EmissionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "Window", eerr.Entity)
	assert.ErrorIs(t, err, ErrNoPtrType)

	window.SetPtrType("WindowRef")
	window.SetDasType("Win")
	window.SetAnnotation("HandleAnnotation")
	require.NoError(t, window.Validate())
	assert.Equal(t,
		[]string{`addAnnotation(make_smart<HandleAnnotation>("Win", "WindowRef", sizeof(WindowRef), alignof(WindowRef)));`},
		window.Add())
}

func TestFunctionEmission(t *testing.T) {
	p := newTestPolicy()
	p.onFunction = func(f *Function) error {
		if f.Name() == "node_count" {
			f.SetSideEffects(SideEffectsNone)
			f.SetDasName("count_nodes")
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	functions, err := tu.Functions()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{`addExtern<DAS_BIND_FUN(make_point), SimNode_ExtFuncCallAndCopyOrMove>(*this, lib, "make_point", SideEffects::worstDefault, "make_point");`},
		functions[0].Add())
	assert.Equal(t,
		[]string{`addExtern<DAS_BIND_FUN(node_count)>(*this, lib, "count_nodes", SideEffects::none, "node_count");`},
		functions[1].Add())
	assert.Nil(t, functions[0].Decl())

	functions[2].SetSideEffects("sometimes")
	var eerr *EmissionError
	assert.ErrorAs(t, functions[2].Validate(), &eerr)
}

func TestReturnType(t *testing.T) {
	cases := map[string]struct {
		sig  string
		want string
		err  bool
	}{
		"simple":           {sig: "int (int, float)", want: "int"},
		"void":             {sig: "void (void)", want: "void"},
		"pointer":          {sig: "struct Node *(struct Node *)", want: "struct Node *"},
		"variadic":         {sig: "int (const char *, ...)", want: "int"},
		"function pointer": {sig: "void (*(int))(int)", want: "void (*(int))"},
		"callback param":   {sig: "int (void (*)(int), int)", want: "int"},
		"no params":        {sig: "int", err: true},
		"no return":        {sig: "(int)", err: true},
		"unbalanced":       {sig: "int int)", err: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ReturnType(tc.sig)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseSideEffects(t *testing.T) {
	se, err := ParseSideEffects("modifyArgument")
	require.NoError(t, err)
	assert.Equal(t, SideEffectsModifyArgument, se)

	_, err = ParseSideEffects("pure")
	assert.ErrorContains(t, err, "worstDefault")
}

func TestMacroConsts(t *testing.T) {
	dir := t.TempDir()
	header := strings.Join([]string{
		"#define MAX_ITEMS 16 // cap",
		"#define _RESERVED 1",
		"#define GREETING \"hi\"",
		"#define MAX_ITEMS 32",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits.h"), []byte(header), 0o644))

	p := newTestPolicy()
	p.macros = []string{"limits.h"}
	p.onMacro = func(m *MacroConst) error {
		if m.Name() == "GREETING" {
			m.SetDasName("HELLO")
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, []string{t.TempDir(), dir})

	macros, err := tu.MacroConsts()
	require.NoError(t, err)
	require.Len(t, macros, 2)

	assert.Equal(t, "MAX_ITEMS", macros[0].Name())
	assert.Equal(t, "16", macros[0].Value())
	assert.Equal(t, 1, macros[0].Line())
	assert.Equal(t, []string{`addConstant(*this, "MAX_ITEMS", 16);`}, macros[0].Add())
	assert.Equal(t, []string{`addConstant(*this, "HELLO", "hi");`}, macros[1].Add())
	assert.Equal(t, "MacroDefinition", macros[1].Raw()["kind"])
	assert.Nil(t, macros[0].Node())
}

func TestMacroHeaderMissing(t *testing.T) {
	p := newTestPolicy()
	p.macros = []string{"nowhere.h"}
	tu := NewTranslationUnit(loadShapes(t), p, []string{t.TempDir()})

	_, err := tu.MacroConsts()
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, clangast.ErrHeaderNotFound)

	assert.Error(t, tu.Discover())
}

var errPolicy = errors.New("policy exploded")

func TestPolicyErrorsCarryContext(t *testing.T) {
	p := newTestPolicy()
	p.onFunction = func(f *Function) error {
		if f.Name() == "first_node" {
			return errPolicy
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)

	_, err := tu.Functions()
	var kerr *ClassificationError
	require.ErrorAs(t, err, &kerr)
	assert.ErrorIs(t, err, errPolicy)
	assert.Equal(t, "configure", kerr.Stage)
	assert.Equal(t, "first_node", kerr.Node.Name)
	assert.Contains(t, err.Error(), "line 30:14")
}

func TestMacroPolicyErrorUsesSubject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits.h"), []byte("#define MAX_ITEMS 16\n"), 0o644))

	p := newTestPolicy()
	p.macros = []string{filepath.Join(dir, "limits.h")}
	p.onMacro = func(*MacroConst) error { return errPolicy }
	tu := NewTranslationUnit(loadShapes(t), p, nil)

	_, err := tu.MacroConsts()
	var kerr *ClassificationError
	require.ErrorAs(t, err, &kerr)
	assert.Nil(t, kerr.Node)
	assert.Contains(t, err.Error(), "#define MAX_ITEMS at ")
}

func TestClassificationFailureAborts(t *testing.T) {
	root := &clangast.Node{
		Kind: clangast.KindTranslationUnit,
		Inner: []*clangast.Node{
			{Kind: clangast.KindFunction, Name: "broken", Loc: clangast.Loc{Line: 7, Col: 1}},
		},
	}
	tu := NewTranslationUnit(root, newTestPolicy(), nil)
	_, err := tu.Enums()

	var kerr *ClassificationError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "classify", kerr.Stage)
}

func TestDuplicateDefinition(t *testing.T) {
	record := func() *clangast.Node {
		return &clangast.Node{
			Kind: clangast.KindRecord, Name: "Twice", TagUsed: "struct",
			Inner: []*clangast.Node{{Kind: clangast.KindField, Name: "x", Type: &clangast.Type{QualType: "int"}}},
		}
	}
	root := &clangast.Node{Kind: clangast.KindTranslationUnit, Inner: []*clangast.Node{record(), record()}}
	tu := NewTranslationUnit(root, newTestPolicy(), nil)

	_, err := tu.Structs()
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestCustomPassError(t *testing.T) {
	p := newTestPolicy()
	p.onPass = func(tu *TranslationUnit) error {
		macros, err := tu.MacroConsts()
		if err != nil {
			return err
		}
		if len(macros) == 0 {
			return errPolicy
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	assert.ErrorIs(t, tu.Discover(), errPolicy)
}

func TestCustomPassIgnores(t *testing.T) {
	p := newTestPolicy()
	p.onPass = func(tu *TranslationUnit) error {
		discovered, err := tu.Discovered()
		if err != nil {
			return err
		}
		for _, ent := range discovered {
			switch ent.Name() {
			case "Color", "Flags", "Point", "node_count":
				ent.Ignore()
			}
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	require.NoError(t, tu.Discover())

	enums, err := tu.Enums()
	require.NoError(t, err)
	assert.Empty(t, enums)

	structs, err := tu.Structs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Node"}, names(structs))

	// the Flags accessors go with their struct
	functions, err := tu.Functions()
	require.NoError(t, err)
	assert.Equal(t, []string{"make_point", "first_node", "log_message"}, names(functions))
	assert.False(t, functions[0].CopyOrMove(), "Point is no longer bound")

	for _, kind := range Kinds {
		list, err := tu.Entities(kind)
		require.NoError(t, err)
		for _, ent := range list {
			assert.False(t, ent.IsIgnored(), ent.Name())
		}
	}
	assert.Equal(t, 1, p.passes)
}

func TestCustomPassIgnoresBitField(t *testing.T) {
	p := newTestPolicy()
	p.onPass = func(tu *TranslationUnit) error {
		structs, err := tu.Structs()
		if err != nil {
			return err
		}
		for _, s := range structs {
			if f, ok := s.Field("enabled"); ok {
				f.Ignore()
			}
		}
		return nil
	}
	tu := NewTranslationUnit(loadShapes(t), p, nil)
	require.NoError(t, tu.Discover())

	functions, err := tu.Functions()
	require.NoError(t, err)
	assert.Equal(t, []string{"make_point", "node_count", "first_node", "log_message"}, names(functions))
	assert.True(t, functions[0].CopyOrMove())
}

func TestEntitiesByKind(t *testing.T) {
	tu := NewTranslationUnit(loadShapes(t), newTestPolicy(), nil)
	counts := map[Kind]int{}
	for _, kind := range Kinds {
		list, err := tu.Entities(kind)
		require.NoError(t, err)
		counts[kind] = len(list)
		for _, ent := range list {
			assert.Equal(t, kind, ent.Kind())
		}
	}
	assert.Equal(t, map[Kind]int{
		KindEnum:         1,
		KindOpaqueStruct: 2,
		KindStruct:       3,
		KindFunction:     6,
		KindMacroConst:   0,
	}, counts)
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(newTestPolicy()))

	var cerr *ConfigurationError
	assert.ErrorAs(t, ValidatePolicy(nil), &cerr)
	assert.ErrorAs(t, ValidatePolicy(namedPolicy{newTestPolicy(), ""}), &cerr)
	assert.ErrorAs(t, ValidatePolicy(namedPolicy{newTestPolicy(), "my-module"}), &cerr)

	cases := map[string]struct {
		path string
		ok   bool
	}{
		"plain":          {path: "shapes.das", ok: true},
		"nested":         {path: "scripts/shapes.das", ok: true},
		"empty":          {path: ""},
		"absolute":       {path: "/etc/shapes.das"},
		"parent":         {path: "../shapes.das"},
		"climbs midway":  {path: "scripts/../../shapes.das"},
		"stays via dots": {path: "scripts/../shapes.das", ok: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidatePolicy(extraPolicy{newTestPolicy(), []ExtraFile{{Path: tc.path}}})
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorAs(t, err, &cerr)
		})
	}
	assert.ErrorIs(t, ValidatePolicy(extraPolicy{newTestPolicy(), []ExtraFile{{Path: "../x"}}}), ErrExtraFileOutside)
}

type extraPolicy struct {
	*testPolicy
	files []ExtraFile
}

func (p extraPolicy) ExtraFiles() []ExtraFile { return p.files }

type namedPolicy struct {
	*testPolicy
	name string
}

func (p namedPolicy) ModuleName() string { return p.name }
