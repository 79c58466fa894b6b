//go:build libclang

package clangast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-clang/clang-v13/clang"
)

func init() {
	Register("libclang", func(string) Frontend { return &Libclang{} })
}

// Libclang parses headers in-process and converts cursors into the same
// node shape the JSON dump produces. Declarations from system headers are
// skipped.
type Libclang struct{}

// Parse parses header with libclang
func (l *Libclang) Parse(ctx context.Context, header string, includeDirs []string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := []string{"-x", "c"}
	for _, dir := range includeDirs {
		if dir != "" {
			args = append(args, "-I"+dir)
		}
	}
	command := append([]string{"libclang"}, append(args, header)...)

	idx := clang.NewIndex(0, 0)
	defer idx.Dispose()

	tu := idx.ParseTranslationUnit(header, args, nil, 0)
	if tu == (clang.TranslationUnit{}) {
		return nil, &FrontendError{Command: command, Err: fmt.Errorf("failed to parse translation unit")}
	}
	defer tu.Dispose()

	var diags []string
	for _, d := range tu.Diagnostics() {
		if d.Severity() >= clang.Diagnostic_Error {
			diags = append(diags, d.Spelling())
		}
		d.Dispose()
	}
	if len(diags) > 0 {
		return nil, &FrontendError{Command: command, Stderr: strings.Join(diags, "\n"), Err: fmt.Errorf("%d errors", len(diags))}
	}

	root := &Node{Kind: KindTranslationUnit}
	tu.TranslationUnitCursor().Visit(func(cursor, parent clang.Cursor) clang.ChildVisitResult {
		if cursor.Location().IsInSystemHeader() {
			return clang.ChildVisit_Continue
		}
		if n := convertCursor(cursor); n != nil {
			root.Inner = append(root.Inner, n)
		}
		return clang.ChildVisit_Continue
	})

	slog.Debug("libclang finished", "nodes", len(root.Inner))
	return &Tree{Root: root}, nil
}

// convertCursor maps one top-level cursor, nil for kinds the binder never looks at
func convertCursor(cursor clang.Cursor) *Node {
	n := &Node{
		Name: cursorName(cursor),
		Loc:  cursorLoc(cursor),
	}

	switch cursor.Kind() {
	case clang.Cursor_EnumDecl:
		n.Kind = KindEnum
		visitChildren(cursor, func(child clang.Cursor) {
			if child.Kind() == clang.Cursor_EnumConstantDecl {
				n.Inner = append(n.Inner, &Node{Kind: KindEnumConstant, Name: child.Spelling(), Loc: cursorLoc(child)})
			}
		})
	case clang.Cursor_StructDecl, clang.Cursor_UnionDecl:
		n.Kind = KindRecord
		n.TagUsed = "struct"
		if cursor.Kind() == clang.Cursor_UnionDecl {
			n.TagUsed = "union"
		}
		visitChildren(cursor, func(child clang.Cursor) {
			if child.Kind() == clang.Cursor_FieldDecl {
				n.Inner = append(n.Inner, &Node{
					Kind:       KindField,
					Name:       child.Spelling(),
					Type:       cursorType(child.Type()),
					IsBitfield: child.IsBitField(),
					Loc:        cursorLoc(child),
				})
			}
		})
	case clang.Cursor_FunctionDecl:
		n.Kind = KindFunction
		n.Type = cursorType(cursor.Type())
		n.Variadic = cursor.IsVariadic()
		for i := int32(0); i < cursor.NumArguments(); i++ {
			param := cursor.Argument(uint32(i))
			n.Inner = append(n.Inner, &Node{Kind: KindParam, Name: param.Spelling(), Type: cursorType(param.Type())})
		}
	case clang.Cursor_TypedefDecl:
		n.Kind = KindTypedef
		n.Type = cursorType(cursor.TypedefDeclUnderlyingType())
	default:
		return nil
	}
	return n
}

func visitChildren(cursor clang.Cursor, fn func(clang.Cursor)) {
	cursor.Visit(func(child, parent clang.Cursor) clang.ChildVisitResult {
		fn(child)
		return clang.ChildVisit_Continue
	})
}

// cursorName drops the synthesized spellings clang gives anonymous records
func cursorName(cursor clang.Cursor) string {
	spelling := cursor.Spelling()
	if strings.Contains(spelling, "(unnamed") || strings.Contains(spelling, "(anonymous") || strings.Contains(spelling, " at ") {
		return ""
	}
	return spelling
}

func cursorType(t clang.Type) *Type {
	out := &Type{QualType: t.Spelling()}
	if canonical := t.CanonicalType().Spelling(); canonical != out.QualType {
		out.DesugaredQualType = canonical
	}
	return out
}

func cursorLoc(cursor clang.Cursor) Loc {
	file, line, col, _ := cursor.Location().FileLocation()
	return Loc{File: file.Name(), Line: int(line), Col: int(col)}
}
