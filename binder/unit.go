package binder

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"dasbindgen/clangast"
	"dasbindgen/logutil"
	orderedmap "dasbindgen/ordered_map"
)

// Status is the outcome of running the policy over one entity
type Status int

const (
	StatusKept Status = iota
	StatusIgnored
)

func (s Status) String() string {
	if s == StatusIgnored {
		return "ignored"
	}
	return "kept"
}

// TranslationUnit is one parsed header together with its policy. Entity
// lists are computed on first use and cached in the fields below; later calls
// return the same slices without touching the policy again.
type TranslationUnit struct {
	root        *clangast.Node
	policy      Policy
	includeDirs []string

	classified     []Entity
	typedefs       *orderedmap.OrderedMap[string, string]
	classifiedDone bool

	// every configured entity, ignored ones included, in configuration order
	discovered []Entity

	enums         []*Enum
	enumsDone     bool
	structs       []*Struct
	structsDone   bool
	opaqueStructs []*OpaqueStruct
	opaqueDone    bool
	functions     []*Function
	functionsDone bool
	macroConsts   []*MacroConst
	macrosDone    bool

	customPassDone bool
}

// NewTranslationUnit wraps a parsed tree. includeDirs resolve relative
// macro header paths.
func NewTranslationUnit(root *clangast.Node, policy Policy, includeDirs []string) *TranslationUnit {
	return &TranslationUnit{
		root:        root,
		policy:      policy,
		includeDirs: includeDirs,
	}
}

func (tu *TranslationUnit) Root() *clangast.Node {
	return tu.root
}

func (tu *TranslationUnit) Policy() Policy {
	return tu.policy
}

// Discover computes every entity list, then runs the policy's custom pass
// once. Structs go before opaque structs since a definition suppresses the
// opaque form.
func (tu *TranslationUnit) Discover() error {
	if _, err := tu.Enums(); err != nil {
		return err
	}
	if _, err := tu.Structs(); err != nil {
		return err
	}
	if _, err := tu.OpaqueStructs(); err != nil {
		return err
	}
	if _, err := tu.Functions(); err != nil {
		return err
	}
	if _, err := tu.MacroConsts(); err != nil {
		return err
	}

	if tu.customPassDone {
		return nil
	}
	tu.customPassDone = true
	if cp, ok := tu.policy.(CustomPasser); ok {
		slog.Debug("running custom pass")
		if err := cp.CustomPass(tu); err != nil {
			return fmt.Errorf("custom pass: %w", err)
		}
		tu.prune()
	}
	return nil
}

// prune drops what the custom pass ignored from the kept lists, together
// with accessors of structs and fields that are no longer bound, and
// recomputes returns by value against the remaining structs
func (tu *TranslationUnit) prune() {
	tu.enums = kept(tu.enums)
	tu.structs = kept(tu.structs)
	tu.opaqueStructs = kept(tu.opaqueStructs)
	tu.macroConsts = kept(tu.macroConsts)

	bound := make(map[string]*Struct, len(tu.structs))
	for _, s := range tu.structs {
		bound[s.name] = s
	}

	functions := tu.functions[:0:0]
	for _, f := range tu.functions {
		if f.IsIgnored() {
			slog.Debug("ignored by custom pass", "kind", f.Kind(), "name", f.name)
			continue
		}
		if f.IsSynthesized() {
			s, ok := bound[f.owner]
			if !ok {
				continue
			}
			if field, ok := s.Field(f.field); !ok || field.IsIgnored() {
				continue
			}
		} else {
			f.copyOrMove = tu.returnsStructByValue(f.returnType)
		}
		functions = append(functions, f)
	}
	tu.functions = functions
}

// kept filters out ignored entities, keeping order
func kept[T Entity](list []T) []T {
	out := list[:0:0]
	for _, e := range list {
		if !e.IsIgnored() {
			out = append(out, e)
		}
	}
	return out
}

// Discovered returns every configured entity including ignored ones
func (tu *TranslationUnit) Discovered() ([]Entity, error) {
	if err := tu.Discover(); err != nil {
		return nil, err
	}
	return tu.discovered, nil
}

// Enums returns the kept enums in source order
func (tu *TranslationUnit) Enums() ([]*Enum, error) {
	if err := tu.ensureEnums(); err != nil {
		return nil, err
	}
	return tu.enums, nil
}

// Structs returns the kept structs and unions in source order
func (tu *TranslationUnit) Structs() ([]*Struct, error) {
	if err := tu.ensureStructs(); err != nil {
		return nil, err
	}
	return tu.structs, nil
}

// OpaqueStructs returns the kept forward declarations that have no full definition
func (tu *TranslationUnit) OpaqueStructs() ([]*OpaqueStruct, error) {
	if err := tu.ensureOpaqueStructs(); err != nil {
		return nil, err
	}
	return tu.opaqueStructs, nil
}

// Functions returns the kept declared functions followed by synthesized bit-field accessors
func (tu *TranslationUnit) Functions() ([]*Function, error) {
	if err := tu.ensureFunctions(); err != nil {
		return nil, err
	}
	return tu.functions, nil
}

// MacroConsts returns the kept #define constants of the policy's macro headers
func (tu *TranslationUnit) MacroConsts() ([]*MacroConst, error) {
	if err := tu.ensureMacroConsts(); err != nil {
		return nil, err
	}
	return tu.macroConsts, nil
}

// Entities returns the kept entities of one kind
func (tu *TranslationUnit) Entities(kind Kind) ([]Entity, error) {
	var out []Entity
	switch kind {
	case KindEnum:
		list, err := tu.Enums()
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			out = append(out, e)
		}
	case KindOpaqueStruct:
		list, err := tu.OpaqueStructs()
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			out = append(out, e)
		}
	case KindStruct:
		list, err := tu.Structs()
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			out = append(out, e)
		}
	case KindFunction:
		list, err := tu.Functions()
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			out = append(out, e)
		}
	case KindMacroConst:
		list, err := tu.MacroConsts()
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			out = append(out, e)
		}
	default:
		return nil, fmt.Errorf("unknown entity kind %d", kind)
	}
	return out, nil
}

func (tu *TranslationUnit) ensureClassified() error {
	if tu.classifiedDone {
		return nil
	}
	if tu.root == nil {
		return errors.New("translation unit has no syntax tree")
	}

	tu.typedefs = orderedmap.NewOrderedMap[string, string]()
	unrecognized := 0
	for _, n := range tu.root.Inner {
		if n.Kind == clangast.KindTypedef && n.Name != "" && n.QualType() != "" {
			tu.typedefs.SetIfAbsent(n.Name, n.QualType())
		}

		ent, err := Classify(n)
		if err != nil {
			return tu.fail(n, "", "classify", err)
		}
		if ent == nil {
			unrecognized++
			continue
		}
		if ent.IsBuiltin() {
			logutil.Trace("skipping builtin", "kind", ent.Kind(), "name", ent.Name())
			continue
		}
		tu.classified = append(tu.classified, ent)
	}

	tu.classifiedDone = true
	slog.Debug("classified syntax tree", "nodes", len(tu.root.Inner), "entities", len(tu.classified), "unrecognized", unrecognized)
	return nil
}

// fail logs a per-node failure with its context and wraps it
func (tu *TranslationUnit) fail(n *clangast.Node, subject, stage string, err error) error {
	cerr := &ClassificationError{Node: n, Subject: subject, Stage: stage, Err: err}
	if n != nil {
		slog.Error("failed to process node", "stage", stage, "node", n.Summary(), "error", err)
		logutil.Trace("offending node", "raw", n.Raw())
	} else {
		slog.Error("failed to process entity", "stage", stage, "subject", subject, "error", err)
	}
	return cerr
}

// configure runs one policy hook and records the outcome
func (tu *TranslationUnit) configure(ent Entity, subject string, hook func() error) (Status, error) {
	if err := hook(); err != nil {
		return StatusKept, tu.fail(ent.Node(), subject, "configure", err)
	}
	tu.discovered = append(tu.discovered, ent)
	if ent.IsIgnored() {
		slog.Debug("ignored by policy", "kind", ent.Kind(), "name", ent.Name())
		return StatusIgnored, nil
	}
	if ent.DasName() != ent.Name() {
		slog.Debug("renamed by policy", "kind", ent.Kind(), "name", ent.Name(), "das", ent.DasName())
	}
	return StatusKept, nil
}

// firstOfKind keeps the first declaration of every name. C allows
// redeclaring functions and records, the first one fixes the order.
func firstOfKind[T Entity](classified []Entity) *orderedmap.OrderedMap[string, T] {
	seen := orderedmap.NewOrderedMap[string, T]()
	for _, ent := range classified {
		e, ok := ent.(T)
		if !ok {
			continue
		}
		if !seen.SetIfAbsent(e.Name(), e) {
			logutil.Trace("redeclaration, keeping the first", "kind", e.Kind(), "name", e.Name())
		}
	}
	return seen
}

func (tu *TranslationUnit) ensureEnums() error {
	if tu.enumsDone {
		return nil
	}
	if err := tu.ensureClassified(); err != nil {
		return err
	}

	for _, e := range firstOfKind[*Enum](tu.classified).Values() {
		status, err := tu.configure(e, "", func() error { return tu.policy.ConfigureEnum(e) })
		if err != nil {
			return err
		}
		if status == StatusKept {
			tu.enums = append(tu.enums, e)
		}
	}

	tu.enumsDone = true
	slog.Info("discovered enums", "count", len(tu.enums))
	return nil
}

func (tu *TranslationUnit) ensureStructs() error {
	if tu.structsDone {
		return nil
	}
	if err := tu.ensureClassified(); err != nil {
		return err
	}

	seen := orderedmap.NewOrderedMap[string, *Struct]()
	for _, ent := range tu.classified {
		s, ok := ent.(*Struct)
		if !ok {
			continue
		}
		if !seen.SetIfAbsent(s.name, s) {
			return &ConfigurationError{Subject: s.tag + " " + s.name, Err: fmt.Errorf("defined more than once (again at %s)", s.node.Loc)}
		}
	}

	for _, s := range seen.Values() {
		status, err := tu.configure(s, "", func() error { return tu.policy.ConfigureStruct(s) })
		if err != nil {
			return err
		}
		if status == StatusIgnored {
			continue
		}
		// fields are configured exactly once, right after their struct
		for _, f := range s.fields {
			if err := tu.policy.ConfigureStructField(f); err != nil {
				return tu.fail(f.node, "", "configure field of "+s.name, err)
			}
			if f.IsIgnored() {
				slog.Debug("field ignored by policy", "struct", s.name, "field", f.name)
			}
		}
		tu.structs = append(tu.structs, s)
	}

	tu.structsDone = true
	slog.Info("discovered structs", "count", len(tu.structs))
	return nil
}

var ptrTypedefRe = regexp.MustCompile(`^(?:struct|union)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\*$`)

// pointerTypedefs maps record names to the first typedef that names a
// pointer to them, the usual shape of a C handle type
func (tu *TranslationUnit) pointerTypedefs() map[string]string {
	out := make(map[string]string)
	for _, alias := range tu.typedefs.Keys() {
		under, _ := tu.typedefs.Get(alias)
		m := ptrTypedefRe.FindStringSubmatch(strings.TrimSpace(under))
		if m == nil {
			continue
		}
		if _, ok := out[m[1]]; !ok {
			out[m[1]] = alias
		}
	}
	return out
}

func (tu *TranslationUnit) ensureOpaqueStructs() error {
	if tu.opaqueDone {
		return nil
	}
	if err := tu.ensureClassified(); err != nil {
		return err
	}

	// a full definition anywhere wins over forward declarations, even when
	// the policy ignores it
	defined := make(map[string]bool)
	for _, ent := range tu.classified {
		if s, ok := ent.(*Struct); ok {
			defined[s.name] = true
		}
	}

	ptrs := tu.pointerTypedefs()
	for _, o := range firstOfKind[*OpaqueStruct](tu.classified).Values() {
		if defined[o.name] {
			logutil.Trace("forward declaration has a definition", "name", o.name)
			continue
		}
		if ptr, ok := ptrs[o.name]; ok {
			o.ptrType = ptr
		}
		status, err := tu.configure(o, "", func() error { return tu.policy.ConfigureOpaqueStruct(o) })
		if err != nil {
			return err
		}
		if status == StatusKept {
			tu.opaqueStructs = append(tu.opaqueStructs, o)
		}
	}

	tu.opaqueDone = true
	slog.Info("discovered opaque structs", "count", len(tu.opaqueStructs))
	return nil
}

func (tu *TranslationUnit) ensureFunctions() error {
	if tu.functionsDone {
		return nil
	}
	if err := tu.ensureStructs(); err != nil {
		return err
	}

	for _, f := range firstOfKind[*Function](tu.classified).Values() {
		status, err := tu.configure(f, "", func() error { return tu.policy.ConfigureFunction(f) })
		if err != nil {
			return err
		}
		if status == StatusIgnored {
			continue
		}
		f.copyOrMove = tu.returnsStructByValue(f.returnType)
		tu.functions = append(tu.functions, f)
	}

	accessors := 0
	for _, s := range tu.structs {
		for _, f := range Accessors(s) {
			tu.functions = append(tu.functions, f)
			accessors++
		}
	}

	tu.functionsDone = true
	slog.Info("discovered functions", "count", len(tu.functions), "accessors", accessors)
	return nil
}

// returnsStructByValue follows typedefs from a return type to a kept struct
func (tu *TranslationUnit) returnsStructByValue(ret string) bool {
	kept := make(map[string]bool, len(tu.structs))
	for _, s := range tu.structs {
		kept[s.name] = true
	}

	t := ret
	// typedef chains in real headers are short, the bound guards against cycles
	for i := 0; i < 16; i++ {
		t = strings.TrimSpace(t)
		for _, q := range []string{"const ", "volatile "} {
			t = strings.TrimPrefix(t, q)
		}
		if strings.ContainsAny(t, "*[(&") {
			return false
		}
		if name, ok := strings.CutPrefix(t, "struct "); ok {
			return kept[strings.TrimSpace(name)]
		}
		if name, ok := strings.CutPrefix(t, "union "); ok {
			return kept[strings.TrimSpace(name)]
		}
		if kept[t] {
			return true
		}
		under, ok := tu.typedefs.Get(t)
		if !ok {
			return false
		}
		t = under
	}
	return false
}

func (tu *TranslationUnit) ensureMacroConsts() error {
	if tu.macrosDone {
		return nil
	}

	seen := orderedmap.NewOrderedMap[string, *MacroConst]()
	for _, header := range tu.policy.MacroHeaders() {
		path, err := clangast.ResolveHeader(header, tu.includeDirs)
		if err != nil {
			return &ConfigurationError{Subject: "macro header " + header, Err: err}
		}
		macros, err := clangast.ScanMacroFile(path)
		if err != nil {
			return &ConfigurationError{Subject: "macro header " + header, Err: err}
		}
		slog.Debug("scanned macro header", "path", path, "defines", len(macros))

		for _, m := range macros {
			mc := newMacroConst(m)
			if mc.IsBuiltin() {
				continue
			}
			seen.SetIfAbsent(mc.name, mc)
		}
	}

	for _, m := range seen.Values() {
		subject := fmt.Sprintf("#define %s at %s:%d", m.name, m.file, m.line)
		status, err := tu.configure(m, subject, func() error { return tu.policy.ConfigureMacroConst(m) })
		if err != nil {
			return err
		}
		if status == StatusKept {
			tu.macroConsts = append(tu.macroConsts, m)
		}
	}

	tu.macrosDone = true
	slog.Info("discovered constants", "count", len(tu.macroConsts))
	return nil
}
