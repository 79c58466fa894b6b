package binder

import (
	"dasbindgen/clangast"
)

// Classify turns one top-level node into an *Enum, *Struct, *OpaqueStruct
// or *Function. Anything else, including anonymous records and enum forward
// declarations, is unrecognized and comes back as nil with no error.
func Classify(n *clangast.Node) (Entity, error) {
	switch {
	case isEnum(n):
		return newEnum(n), nil
	case isRecord(n) && len(n.Children(clangast.KindField)) > 0:
		return newStruct(n)
	case isRecord(n):
		return newOpaqueStruct(n), nil
	case n.Kind == clangast.KindFunction && n.Name != "":
		return newFunction(n)
	}
	return nil, nil
}

func isEnum(n *clangast.Node) bool {
	return n.Kind == clangast.KindEnum && n.Name != "" && len(n.Children(clangast.KindEnumConstant)) > 0
}

func isRecord(n *clangast.Node) bool {
	return n.Kind == clangast.KindRecord && (n.TagUsed == "struct" || n.TagUsed == "union") && n.Name != ""
}
