package emit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/divan/num2words"

	"dasbindgen/binder"
	"dasbindgen/clangast"
)

const generatedBy = "dasbindgen"

// File is one generated artifact
type File struct {
	Path    string
	Content string
}

// Options control the output layout
type Options struct {
	// Output is the single-mode .cpp path. In split mode the same path
	// without its extension is the prefix of every unit.
	Output string
	// Parts is the partition count; zero selects single mode
	Parts int
}

func (o Options) prefix() string {
	return strings.TrimSuffix(o.Output, filepath.Ext(o.Output))
}

type section struct {
	kind     binder.Kind
	label    string
	method   string
	entities []binder.Entity
}

var sectionNames = map[binder.Kind][2]string{
	binder.KindEnum:         {"enums", "Enums"},
	binder.KindOpaqueStruct: {"opaque structs", "OpaqueStructs"},
	binder.KindStruct:       {"structs", "Structs"},
	binder.KindFunction:     {"functions", "Functions"},
	binder.KindMacroConst:   {"constants", "Constants"},
}

// Emitter renders a discovered translation unit into source files
type Emitter struct {
	unit   *binder.TranslationUnit
	tree   *clangast.Tree
	header string
	opts   Options
}

// New prepares an emitter. tree is only read for the debug dump and may be nil.
func New(unit *binder.TranslationUnit, tree *clangast.Tree, header string, opts Options) *Emitter {
	return &Emitter{unit: unit, tree: tree, header: header, opts: opts}
}

// Files renders every artifact without touching the disk
func (e *Emitter) Files() ([]File, error) {
	if e.opts.Output == "" {
		return nil, errors.New("no output path")
	}
	if e.opts.Parts < 0 {
		return nil, fmt.Errorf("invalid partition count %d", e.opts.Parts)
	}
	if err := e.unit.Discover(); err != nil {
		return nil, err
	}

	sections, err := e.sections()
	if err != nil {
		return nil, err
	}

	var files []File
	if e.opts.Parts == 0 {
		files = append(files, e.single(sections))
	} else {
		files = append(files, e.split(sections)...)
	}

	policy := e.unit.Policy()
	if policy.SaveAST() {
		if e.tree == nil {
			return nil, errors.New("syntax tree dump requested but no tree is available")
		}
		data, err := e.tree.Dump()
		if err != nil {
			return nil, fmt.Errorf("dump syntax tree: %w", err)
		}
		files = append(files, File{Path: e.opts.Output + ".ast.json", Content: string(data)})
	}

	if ef, ok := policy.(binder.ExtraFiler); ok {
		dir := filepath.Dir(e.opts.Output)
		for _, f := range ef.ExtraFiles() {
			if err := binder.CheckExtraFilePath(f.Path); err != nil {
				return nil, err
			}
			files = append(files, File{Path: filepath.Join(dir, f.Path), Content: f.Content})
		}
	}
	return files, nil
}

// sections collects the kept entities of every kind in emission order and
// checks each can be rendered as configured
func (e *Emitter) sections() ([]section, error) {
	out := make([]section, 0, len(binder.Kinds))
	for _, kind := range binder.Kinds {
		all, err := e.unit.Entities(kind)
		if err != nil {
			return nil, err
		}
		entities := make([]binder.Entity, 0, len(all))
		for _, ent := range all {
			if ent.IsIgnored() {
				continue
			}
			entities = append(entities, ent)
			if err := ent.Validate(); err != nil {
				slog.Error("entity cannot be emitted", "kind", kind, "name", ent.Name(), "error", err)
				return nil, err
			}
		}
		names := sectionNames[kind]
		out = append(out, section{kind: kind, label: names[0], method: names[1], entities: entities})
	}
	return out, nil
}

func (e *Emitter) moduleName() string {
	return e.unit.Policy().ModuleName()
}

func (e *Emitter) include() string {
	if inc := e.unit.Policy().HeaderInclude(); inc != "" {
		return inc
	}
	return filepath.Base(e.header)
}

func (e *Emitter) banner(sb *strings.Builder, extra string) {
	sb.WriteString(fmt.Sprintf("// generated by %s\n", generatedBy))
	if title := e.unit.Policy().Title(); title != "" {
		sb.WriteString(fmt.Sprintf("// %s\n", title))
	}
	if extra != "" {
		sb.WriteString(fmt.Sprintf("// %s\n", extra))
	}
	sb.WriteString("\n")
}

func (e *Emitter) includes(sb *strings.Builder) {
	sb.WriteString("#include \"daScript/daScript.h\"\n\n")
	sb.WriteString(fmt.Sprintf("#include \"%s\"\n", e.include()))
}

func writeComment(sb *strings.Builder, indent, label string) {
	sb.WriteString("\n")
	sb.WriteString(indent + "//\n")
	sb.WriteString(fmt.Sprintf("%s// %s\n", indent, label))
	sb.WriteString(indent + "//\n\n")
}

func writeLines(sb *strings.Builder, indent string, lines []string) {
	for _, line := range lines {
		sb.WriteString(indent + line + "\n")
	}
}

func (e *Emitter) moduleLibrary(sb *strings.Builder) {
	sb.WriteString("        ModuleLibrary lib;\n")
	sb.WriteString("        lib.addModule(this);\n")
	sb.WriteString("        lib.addBuiltInModule();\n")
}

func (e *Emitter) single(sections []section) File {
	module := e.moduleName()

	var sb strings.Builder
	e.banner(&sb, "")
	e.includes(&sb)
	sb.WriteString("\nusing namespace das;\n")

	for _, sec := range sections {
		writeComment(&sb, "", sec.label)
		for _, ent := range sec.entities {
			writeLines(&sb, "", ent.Header())
			writeLines(&sb, "", ent.Decl())
		}
	}

	sb.WriteString(fmt.Sprintf("\nclass Module_%s : public Module {\n", module))
	sb.WriteString("public:\n")
	sb.WriteString(fmt.Sprintf("    Module_%s() : Module(\"%s\") {\n", module, module))
	e.moduleLibrary(&sb)
	for _, sec := range sections {
		writeComment(&sb, "        ", sec.label)
		for _, ent := range sec.entities {
			writeLines(&sb, "        ", ent.Add())
		}
	}
	sb.WriteString("    }\n")
	sb.WriteString("};\n\n")
	sb.WriteString(fmt.Sprintf("REGISTER_MODULE(Module_%s);\n", module))

	path := e.opts.prefix() + ".cpp"
	slog.Debug("rendered module", "path", path)
	return File{Path: path, Content: sb.String()}
}

func (e *Emitter) split(sections []section) []File {
	n := e.opts.Parts
	prefix := e.opts.prefix()
	base := filepath.Base(prefix)

	parts := make([][][]binder.Entity, len(sections))
	for k, sec := range sections {
		parts[k] = Split(sec.entities, n)
	}

	files := []File{
		{Path: prefix + ".h", Content: e.sharedHeader(sections)},
		{Path: prefix + ".cpp", Content: e.aggregator(sections, base)},
	}
	for i := 0; i < n; i++ {
		var sb strings.Builder
		e.banner(&sb, fmt.Sprintf("part %s of %s", num2words.Convert(i+1), num2words.Convert(n)))
		sb.WriteString(fmt.Sprintf("#include \"%s.h\"\n", base))
		sb.WriteString("\nusing namespace das;\n")

		for k, sec := range sections {
			writeComment(&sb, "", sec.label)
			for _, ent := range parts[k][i] {
				writeLines(&sb, "", ent.Decl())
			}
		}
		for k, sec := range sections {
			sb.WriteString(fmt.Sprintf("\nvoid Module_%s::add%s_%d(ModuleLibrary & lib) {\n", e.moduleName(), sec.method, i))
			for _, ent := range parts[k][i] {
				writeLines(&sb, "    ", ent.Add())
			}
			sb.WriteString("}\n")
		}

		path := fmt.Sprintf("%s_%d.cpp", prefix, i)
		slog.Debug("rendered partition", "path", path, "part", i)
		files = append(files, File{Path: path, Content: sb.String()})
	}
	return files
}

func (e *Emitter) sharedHeader(sections []section) string {
	module := e.moduleName()

	var sb strings.Builder
	e.banner(&sb, "")
	sb.WriteString("#pragma once\n\n")
	e.includes(&sb)
	sb.WriteString("\nusing namespace das;\n")

	for _, sec := range sections {
		var lines []string
		for _, ent := range sec.entities {
			lines = append(lines, ent.Header()...)
		}
		if len(lines) == 0 {
			continue
		}
		writeComment(&sb, "", sec.label)
		writeLines(&sb, "", lines)
	}

	sb.WriteString(fmt.Sprintf("\nclass Module_%s : public das::Module {\n", module))
	sb.WriteString("public:\n")
	sb.WriteString(fmt.Sprintf("    Module_%s();\n", module))
	sb.WriteString("private:\n")
	for _, sec := range sections {
		for i := 0; i < e.opts.Parts; i++ {
			sb.WriteString(fmt.Sprintf("    void add%s_%d(das::ModuleLibrary & lib);\n", sec.method, i))
		}
	}
	sb.WriteString("};\n")
	return sb.String()
}

func (e *Emitter) aggregator(sections []section, base string) string {
	module := e.moduleName()

	var sb strings.Builder
	e.banner(&sb, "")
	sb.WriteString(fmt.Sprintf("#include \"%s.h\"\n", base))
	sb.WriteString("\nusing namespace das;\n\n")
	sb.WriteString(fmt.Sprintf("Module_%s::Module_%s() : Module(\"%s\") {\n", module, module, module))
	e.moduleLibrary(&sb)
	for _, sec := range sections {
		sb.WriteString("\n")
		for i := 0; i < e.opts.Parts; i++ {
			sb.WriteString(fmt.Sprintf("        add%s_%d(lib);\n", sec.method, i))
		}
	}
	sb.WriteString("}\n\n")
	sb.WriteString(fmt.Sprintf("REGISTER_MODULE(Module_%s);\n", module))
	return sb.String()
}

// WriteFiles writes files in order, creating parent directories. Files
// written before a failure are left on disk.
func WriteFiles(files []File) error {
	for _, f := range files {
		if dir := filepath.Dir(f.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(f.Path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		slog.Info("wrote file", "path", f.Path, "bytes", len(f.Content))
	}
	return nil
}
