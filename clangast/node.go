package clangast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Clang node kinds the binder cares about
const (
	KindTranslationUnit = "TranslationUnitDecl"
	KindEnum            = "EnumDecl"
	KindEnumConstant    = "EnumConstantDecl"
	KindRecord          = "RecordDecl"
	KindField           = "FieldDecl"
	KindFunction        = "FunctionDecl"
	KindParam           = "ParmVarDecl"
	KindTypedef         = "TypedefDecl"
)

// Type mirrors the "type" object of a clang JSON node
type Type struct {
	QualType          string `json:"qualType"`
	DesugaredQualType string `json:"desugaredQualType,omitempty"`
}

// Loc is the best-effort source location of a node. Clang omits the file
// when it matches the previous node, so File may be empty.
type Loc struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

func (l Loc) String() string {
	if l.Line == 0 {
		return "<unknown>"
	}
	if l.File == "" {
		return fmt.Sprintf("line %d:%d", l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Node is one declaration of the serialized syntax tree
type Node struct {
	ID         string
	Kind       string
	Name       string
	TagUsed    string
	Type       *Type
	IsBitfield bool
	IsImplicit bool
	Variadic   bool
	Loc        Loc
	Inner      []*Node

	// raw is the decoded JSON object this node came from, kept for
	// policy predicates and the debug dump.
	raw map[string]any
}

// Raw returns the generic form of the node. Nodes built by a front-end that
// never saw JSON get a synthesized map with the same keys.
func (n *Node) Raw() map[string]any {
	if n.raw != nil {
		return n.raw
	}
	m := map[string]any{"kind": n.Kind}
	if n.ID != "" {
		m["id"] = n.ID
	}
	if n.Name != "" {
		m["name"] = n.Name
	}
	if n.TagUsed != "" {
		m["tagUsed"] = n.TagUsed
	}
	if n.Type != nil {
		t := map[string]any{"qualType": n.Type.QualType}
		if n.Type.DesugaredQualType != "" {
			t["desugaredQualType"] = n.Type.DesugaredQualType
		}
		m["type"] = t
	}
	if n.IsBitfield {
		m["isBitfield"] = true
	}
	if n.IsImplicit {
		m["isImplicit"] = true
	}
	if n.Variadic {
		m["variadic"] = true
	}
	if n.Loc.Line != 0 {
		loc := map[string]any{"line": n.Loc.Line, "col": n.Loc.Col}
		if n.Loc.File != "" {
			loc["file"] = n.Loc.File
		}
		m["loc"] = loc
	}
	if len(n.Inner) > 0 {
		inner := make([]any, len(n.Inner))
		for i, c := range n.Inner {
			inner[i] = c.Raw()
		}
		m["inner"] = inner
	}
	n.raw = m
	return m
}

// HasInner reports whether the node has any children
func (n *Node) HasInner() bool {
	return len(n.Inner) > 0
}

// QualType returns the declared type spelling, or "" for untyped nodes
func (n *Node) QualType() string {
	if n.Type == nil {
		return ""
	}
	return n.Type.QualType
}

// Children returns the direct children of the given kind
func (n *Node) Children(kind string) []*Node {
	var out []*Node
	for _, c := range n.Inner {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Summary is a one-line description used in logs and error messages
func (n *Node) Summary() string {
	var sb strings.Builder
	sb.WriteString(n.Kind)
	if n.TagUsed != "" {
		sb.WriteString(" " + n.TagUsed)
	}
	if n.Name != "" {
		sb.WriteString(" " + n.Name)
	}
	if t := n.QualType(); t != "" {
		sb.WriteString(fmt.Sprintf(" '%s'", t))
	}
	sb.WriteString(" at " + n.Loc.String())
	return sb.String()
}

// Decode converts a generic JSON value into a typed tree. The generic value
// is retained on every node.
func Decode(v any) (*Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", v)
	}
	return decodeNode(m, "")
}

// Parse decodes clang's -ast-dump=json output
func Parse(data []byte) (*Node, any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nil, err
	}
	root, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return root, v, nil
}

func decodeNode(m map[string]any, path string) (*Node, error) {
	kind, ok := m["kind"].(string)
	if !ok {
		return nil, fmt.Errorf("node %s has no kind", pathOrRoot(path))
	}

	n := &Node{Kind: kind, raw: m}
	n.ID, _ = m["id"].(string)
	n.Name, _ = m["name"].(string)
	n.TagUsed, _ = m["tagUsed"].(string)
	n.IsBitfield, _ = m["isBitfield"].(bool)
	n.IsImplicit, _ = m["isImplicit"].(bool)
	n.Variadic, _ = m["variadic"].(bool)

	if t, ok := m["type"].(map[string]any); ok {
		n.Type = &Type{}
		n.Type.QualType, _ = t["qualType"].(string)
		n.Type.DesugaredQualType, _ = t["desugaredQualType"].(string)
	}

	if loc, ok := m["loc"].(map[string]any); ok {
		// macro expansions carry the interesting location one level down
		if spelling, ok := loc["spellingLoc"].(map[string]any); ok {
			loc = spelling
		}
		n.Loc.File, _ = loc["file"].(string)
		n.Loc.Line = intOf(loc["line"])
		n.Loc.Col = intOf(loc["col"])
	}

	if inner, ok := m["inner"]; ok {
		children, ok := inner.([]any)
		if !ok {
			return nil, fmt.Errorf("node %s: inner is %T, not a list", pathOrRoot(path), inner)
		}
		n.Inner = make([]*Node, 0, len(children))
		for i, c := range children {
			cm, ok := c.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("node %s/%d: expected object, got %T", pathOrRoot(path), i, c)
			}
			child, err := decodeNode(cm, fmt.Sprintf("%s/%d", path, i))
			if err != nil {
				return nil, err
			}
			n.Inner = append(n.Inner, child)
		}
	}

	return n, nil
}

func intOf(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		i, _ := x.Int64()
		return int(i)
	}
	return 0
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
