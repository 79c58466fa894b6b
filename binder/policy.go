package binder

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// Policy is the per-project customization hook set. Each Configure method
// runs once per discovered entity, in discovery order, and may rename,
// flip flags or Ignore the entity. A returned error aborts the run.
type Policy interface {
	// ModuleName is the name scripts pass to require
	ModuleName() string
	// Title is free-form text for generated banners
	Title() string
	// HeaderInclude is what generated code #includes, empty for the header's base name
	HeaderInclude() string
	// MacroHeaders lists headers scanned for #define constants
	MacroHeaders() []string
	// SaveAST asks for the raw tree to be written next to the output
	SaveAST() bool

	ConfigureEnum(e *Enum) error
	ConfigureStruct(s *Struct) error
	ConfigureStructField(f *Field) error
	ConfigureOpaqueStruct(o *OpaqueStruct) error
	ConfigureFunction(f *Function) error
	ConfigureMacroConst(m *MacroConst) error
}

// CustomPasser is implemented by policies that adjust entities across kinds
// after discovery and before emission
type CustomPasser interface {
	CustomPass(tu *TranslationUnit) error
}

// ExtraFile is an additional generated file, relative to the output directory
type ExtraFile struct {
	Path    string
	Content string
}

// ExtraFiler is implemented by policies that ship extra generated files
type ExtraFiler interface {
	ExtraFiles() []ExtraFile
}

var moduleNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidatePolicy checks the parts of a policy every run depends on
func ValidatePolicy(p Policy) error {
	if p == nil {
		return &ConfigurationError{Err: errors.New("no policy")}
	}
	name := p.ModuleName()
	if name == "" {
		return &ConfigurationError{Subject: "module", Err: errors.New("module name is required")}
	}
	if !moduleNameRe.MatchString(name) {
		return &ConfigurationError{Subject: "module", Err: fmt.Errorf("%q is not a valid identifier", name)}
	}
	if ef, ok := p.(ExtraFiler); ok {
		for _, f := range ef.ExtraFiles() {
			if err := CheckExtraFilePath(f.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

// ErrExtraFileOutside is reported for extra files that would land outside the output directory
var ErrExtraFileOutside = errors.New("path must stay inside the output directory")

// CheckExtraFilePath rejects empty, absolute and parent-climbing extra file paths
func CheckExtraFilePath(path string) error {
	if path == "" {
		return &ConfigurationError{Subject: "extra files", Err: errors.New("extra file without a path")}
	}
	if !filepath.IsLocal(path) {
		return &ConfigurationError{Subject: "extra file " + path, Err: ErrExtraFileOutside}
	}
	return nil
}
