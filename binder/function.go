package binder

import (
	"fmt"
	"strings"

	"dasbindgen/clangast"
)

// SideEffects names a daScript SideEffects class
type SideEffects string

const (
	SideEffectsNone                      SideEffects = "none"
	SideEffectsUnsafe                    SideEffects = "unsafe"
	SideEffectsUserScenario              SideEffects = "userScenario"
	SideEffectsModifyExternal            SideEffects = "modifyExternal"
	SideEffectsAccessExternal            SideEffects = "accessExternal"
	SideEffectsModifyArgument            SideEffects = "modifyArgument"
	SideEffectsModifyArgumentAndExternal SideEffects = "modifyArgumentAndExternal"
	SideEffectsWorstDefault              SideEffects = "worstDefault"
	SideEffectsAccessGlobal              SideEffects = "accessGlobal"
	SideEffectsInvoke                    SideEffects = "invoke"
)

var knownSideEffects = []SideEffects{
	SideEffectsNone,
	SideEffectsUnsafe,
	SideEffectsUserScenario,
	SideEffectsModifyExternal,
	SideEffectsAccessExternal,
	SideEffectsModifyArgument,
	SideEffectsModifyArgumentAndExternal,
	SideEffectsWorstDefault,
	SideEffectsAccessGlobal,
	SideEffectsInvoke,
}

// ParseSideEffects accepts any SideEffects class name
func ParseSideEffects(s string) (SideEffects, error) {
	for _, se := range knownSideEffects {
		if string(se) == s {
			return se, nil
		}
	}
	names := make([]string, len(knownSideEffects))
	for i, se := range knownSideEffects {
		names[i] = string(se)
	}
	return "", fmt.Errorf("unknown side effects %q, want one of %s", s, strings.Join(names, ", "))
}

// Param is informational only, parameters are never emitted one by one
type Param struct {
	Name string
	Type string
}

// Function is a declared C function or a synthesized accessor
type Function struct {
	entity
	signature   string
	returnType  string
	params      []Param
	variadic    bool
	sideEffects SideEffects

	// set by the unit once all structs are known
	copyOrMove bool

	// inline definition for functions the binder writes itself
	body []string

	// struct and field C names a bit-field accessor stands in for
	owner, field string
}

func newFunction(n *clangast.Node) (*Function, error) {
	if n.Type == nil || n.Type.QualType == "" {
		return nil, fmt.Errorf("function %q has no type", n.Name)
	}
	ret, err := ReturnType(n.Type.QualType)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", n.Name, err)
	}
	fn := &Function{
		entity:      entity{name: n.Name, node: n},
		signature:   n.Type.QualType,
		returnType:  ret,
		variadic:    n.Variadic,
		sideEffects: SideEffectsWorstDefault,
	}
	for _, p := range n.Children(clangast.KindParam) {
		fn.params = append(fn.params, Param{Name: p.Name, Type: p.QualType()})
	}
	return fn, nil
}

// ReturnType strips the trailing parameter list from a function type spelling,
// "int (int, float)" gives "int"
func ReturnType(signature string) (string, error) {
	sig := strings.TrimSpace(signature)
	if !strings.HasSuffix(sig, ")") {
		return "", fmt.Errorf("signature %q has no parameter list", signature)
	}
	depth := 0
	for i := len(sig) - 1; i >= 0; i-- {
		switch sig[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				ret := strings.TrimSpace(sig[:i])
				if ret == "" {
					return "", fmt.Errorf("signature %q has no return type", signature)
				}
				return ret, nil
			}
		}
	}
	return "", fmt.Errorf("signature %q has unbalanced parentheses", signature)
}

func (f *Function) Kind() Kind {
	return KindFunction
}

// Signature is the full type spelling, for example "int (int, float)"
func (f *Function) Signature() string { return f.signature }

func (f *Function) ReturnType() string { return f.returnType }

func (f *Function) Params() []Param { return f.params }

func (f *Function) IsVariadic() bool { return f.variadic }

func (f *Function) SideEffects() SideEffects { return f.sideEffects }

func (f *Function) SetSideEffects(se SideEffects) { f.sideEffects = se }

// CopyOrMove reports whether the function returns a bound struct by value
func (f *Function) CopyOrMove() bool { return f.copyOrMove }

// IsSynthesized reports whether the binder generated the function
func (f *Function) IsSynthesized() bool { return f.body != nil }

func (f *Function) Validate() error {
	if _, err := ParseSideEffects(string(f.sideEffects)); err != nil {
		return &EmissionError{Kind: KindFunction, Entity: f.name, Err: err}
	}
	return nil
}

func (f *Function) Decl() []string {
	return f.body
}

func (f *Function) Add() []string {
	simNode := ""
	if f.copyOrMove {
		simNode = ", SimNode_ExtFuncCallAndCopyOrMove"
	}
	return []string{fmt.Sprintf("addExtern<DAS_BIND_FUN(%s)%s>(*this, lib, \"%s\", SideEffects::%s, \"%s\");",
		f.name, simNode, f.DasName(), f.sideEffects, f.name)}
}
