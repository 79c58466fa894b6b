package policy

import "dasbindgen/binder"

// Base keeps everything the header declares under its C names. Embed it to
// override a few hooks.
type Base struct {
	Module  string
	Display string
	Include string
	Macros  []string
	DumpAST bool
}

var _ binder.Policy = (*Base)(nil)

func (b *Base) ModuleName() string     { return b.Module }
func (b *Base) Title() string          { return b.Display }
func (b *Base) HeaderInclude() string  { return b.Include }
func (b *Base) MacroHeaders() []string { return b.Macros }
func (b *Base) SaveAST() bool          { return b.DumpAST }

func (b *Base) ConfigureEnum(*binder.Enum) error                 { return nil }
func (b *Base) ConfigureStruct(*binder.Struct) error             { return nil }
func (b *Base) ConfigureStructField(*binder.Field) error         { return nil }
func (b *Base) ConfigureOpaqueStruct(*binder.OpaqueStruct) error { return nil }
func (b *Base) ConfigureFunction(*binder.Function) error         { return nil }
func (b *Base) ConfigureMacroConst(*binder.MacroConst) error     { return nil }
