package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"dasbindgen/binder"
	"dasbindgen/clangast"
)

// Rule is one entry of a policy file. Every rule whose match and where
// clauses accept an entity is applied, in file order, so later rules
// override earlier ones.
type Rule struct {
	// Match is a regexp over the C name, anchored at both ends. Empty matches all.
	Match string `yaml:"match"`
	// Struct restricts field rules to structs whose C name matches
	Struct string `yaml:"struct"`
	// Where is a jq expression run against the raw node, the rule applies
	// when it yields anything but false or null
	Where string `yaml:"where"`

	Ignore bool `yaml:"ignore"`
	// Rename sets the script name. It and the other string settings below
	// expand $1 and ${name} from Match.
	Rename string `yaml:"rename"`

	Local *bool `yaml:"local"`
	Copy  *bool `yaml:"copy"`
	Move  *bool `yaml:"move"`
	Clone *bool `yaml:"clone"`

	SideEffects string `yaml:"side_effects"`

	DasType    string `yaml:"das_type"`
	PtrType    string `yaml:"ptr_type"`
	Annotation string `yaml:"annotation"`

	Value string `yaml:"value"`
}

// RuleSet holds the rules of each entity kind
type RuleSet struct {
	Enums         []Rule `yaml:"enums"`
	Structs       []Rule `yaml:"structs"`
	Fields        []Rule `yaml:"fields"`
	OpaqueStructs []Rule `yaml:"opaque_structs"`
	Functions     []Rule `yaml:"functions"`
	MacroConsts   []Rule `yaml:"macro_consts"`
}

// ExtraFileEntry is an extra_files entry
type ExtraFileEntry struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

// Document is the layout of a policy file
type Document struct {
	Module       string           `yaml:"module"`
	Title        string           `yaml:"title"`
	Include      string           `yaml:"include"`
	SaveAST      bool             `yaml:"save_ast"`
	MacroHeaders []string         `yaml:"macro_headers"`
	ExtraFiles   []ExtraFileEntry `yaml:"extra_files"`
	Rules        RuleSet          `yaml:"rules"`
}

type compiledRule struct {
	Rule
	match  *regexp.Regexp
	strukt *regexp.Regexp
	where  *gojq.Code
	side   binder.SideEffects
}

// Rules is a policy read from a YAML file
type Rules struct {
	Base
	extra []binder.ExtraFile

	enums         []*compiledRule
	structs       []*compiledRule
	fields        []*compiledRule
	opaqueStructs []*compiledRule
	functions     []*compiledRule
	macroConsts   []*compiledRule
}

var (
	_ binder.Policy     = (*Rules)(nil)
	_ binder.ExtraFiler = (*Rules)(nil)
)

// LoadFile reads and compiles a policy file
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &binder.ConfigurationError{Subject: path, Err: err}
	}
	r, err := ParseRules(data)
	if err != nil {
		var cerr *binder.ConfigurationError
		if errors.As(err, &cerr) {
			cerr.Subject = path + ": " + cerr.Subject
			return nil, cerr
		}
		return nil, &binder.ConfigurationError{Subject: path, Err: err}
	}
	return r, nil
}

// ParseRules decodes a policy document. Unknown keys are rejected.
func ParseRules(data []byte) (*Rules, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &binder.ConfigurationError{Subject: "policy", Err: errors.New("empty document")}
		}
		return nil, &binder.ConfigurationError{Subject: "policy", Err: err}
	}
	return NewRules(doc)
}

// NewRules compiles every pattern and predicate of doc up front
func NewRules(doc Document) (*Rules, error) {
	r := &Rules{
		Base: Base{
			Module:  doc.Module,
			Display: doc.Title,
			Include: doc.Include,
			Macros:  doc.MacroHeaders,
			DumpAST: doc.SaveAST,
		},
	}
	for i, f := range doc.ExtraFiles {
		if f.Path == "" {
			return nil, &binder.ConfigurationError{Subject: fmt.Sprintf("extra_files[%d]", i), Err: errors.New("path is required")}
		}
		r.extra = append(r.extra, binder.ExtraFile{Path: f.Path, Content: f.Content})
	}

	var err error
	if r.enums, err = compileRules("enums", doc.Rules.Enums, allowRename); err != nil {
		return nil, err
	}
	if r.structs, err = compileRules("structs", doc.Rules.Structs, allowRename|allowFlags); err != nil {
		return nil, err
	}
	if r.fields, err = compileRules("fields", doc.Rules.Fields, allowRename|allowStruct); err != nil {
		return nil, err
	}
	if r.opaqueStructs, err = compileRules("opaque_structs", doc.Rules.OpaqueStructs, allowRename|allowOpaque); err != nil {
		return nil, err
	}
	if r.functions, err = compileRules("functions", doc.Rules.Functions, allowRename|allowSideEffects); err != nil {
		return nil, err
	}
	if r.macroConsts, err = compileRules("macro_consts", doc.Rules.MacroConsts, allowRename|allowValue); err != nil {
		return nil, err
	}
	return r, nil
}

type allowed uint8

const (
	allowRename allowed = 1 << iota
	allowStruct
	allowFlags
	allowSideEffects
	allowOpaque
	allowValue
)

func compileRules(section string, rules []Rule, allow allowed) ([]*compiledRule, error) {
	out := make([]*compiledRule, 0, len(rules))
	for i, rule := range rules {
		c, err := compileRule(rule, allow)
		if err != nil {
			return nil, &binder.ConfigurationError{Subject: fmt.Sprintf("rules.%s[%d]", section, i), Err: err}
		}
		out = append(out, c)
	}
	return out, nil
}

func compileRule(rule Rule, allow allowed) (*compiledRule, error) {
	checks := []struct {
		set  bool
		need allowed
		key  string
	}{
		{rule.Struct != "", allowStruct, "struct"},
		{rule.Local != nil || rule.Copy != nil || rule.Move != nil || rule.Clone != nil, allowFlags, "local/copy/move/clone"},
		{rule.SideEffects != "", allowSideEffects, "side_effects"},
		{rule.DasType != "" || rule.PtrType != "" || rule.Annotation != "", allowOpaque, "das_type/ptr_type/annotation"},
		{rule.Value != "", allowValue, "value"},
	}
	for _, c := range checks {
		if c.set && allow&c.need == 0 {
			return nil, fmt.Errorf("%s does not apply here", c.key)
		}
	}
	if rule.Ignore && rule.Rename != "" {
		return nil, errors.New("ignore and rename are exclusive")
	}

	c := &compiledRule{Rule: rule}
	var err error
	if c.match, err = anchored(rule.Match); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	if rule.Struct != "" {
		if c.strukt, err = anchored(rule.Struct); err != nil {
			return nil, fmt.Errorf("struct: %w", err)
		}
	}
	if rule.Where != "" {
		q, err := gojq.Parse(rule.Where)
		if err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
		if c.where, err = gojq.Compile(q); err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
	}
	if rule.SideEffects != "" {
		if c.side, err = binder.ParseSideEffects(rule.SideEffects); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func anchored(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = ".*"
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}

// accepts reports whether the rule applies to name and raw, and returns
// the submatch indices used for rename expansion
func (c *compiledRule) accepts(name string, raw map[string]any) ([]int, bool, error) {
	m := c.match.FindStringSubmatchIndex(name)
	if m == nil {
		return nil, false, nil
	}
	if c.where == nil {
		return m, true, nil
	}
	ok, err := truthy(c.where, raw)
	if err != nil {
		return nil, false, fmt.Errorf("where %q on %s: %w", c.Where, name, err)
	}
	return m, ok, nil
}

// truthy runs a predicate and takes its first output, jq style
func truthy(code *gojq.Code, raw map[string]any) (bool, error) {
	iter := code.Run(raw)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return true, nil
}

// hit is a rule that accepted an entity, with the submatches of its name
type hit struct {
	*compiledRule
	name string
	sub  []int
}

// expand substitutes $1 and ${name} in template from the match
func (h hit) expand(template string) string {
	return string(h.match.ExpandString(nil, template, h.name, h.sub))
}

// configurable is what a rule can act on, fields included
type configurable interface {
	Name() string
	Ignore()
	SetDasName(string)
	Node() *clangast.Node
}

// apply runs the common part of every rule and returns the rules that
// matched for kind-specific settings
func apply(rules []*compiledRule, ent configurable, raw map[string]any) ([]hit, error) {
	var matched []hit
	for _, c := range rules {
		m, ok, err := c.accepts(ent.Name(), raw)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if c.Ignore {
			ent.Ignore()
		}
		h := hit{compiledRule: c, name: ent.Name(), sub: m}
		if c.Rename != "" {
			ent.SetDasName(h.expand(c.Rename))
		}
		matched = append(matched, h)
	}
	return matched, nil
}

func rawOf(ent configurable) map[string]any {
	if n := ent.Node(); n != nil {
		return n.Raw()
	}
	return map[string]any{"name": ent.Name()}
}

func (r *Rules) ConfigureEnum(e *binder.Enum) error {
	_, err := apply(r.enums, e, rawOf(e))
	return err
}

func (r *Rules) ConfigureStruct(s *binder.Struct) error {
	matched, err := apply(r.structs, s, rawOf(s))
	if err != nil {
		return err
	}
	for _, c := range matched {
		if c.Local != nil {
			s.SetIsLocal(*c.Local)
		}
		if c.Copy != nil {
			s.SetCanCopy(*c.Copy)
		}
		if c.Move != nil {
			s.SetCanMove(*c.Move)
		}
		if c.Clone != nil {
			s.SetCanClone(*c.Clone)
		}
	}
	return nil
}

func (r *Rules) ConfigureStructField(f *binder.Field) error {
	var rules []*compiledRule
	for _, c := range r.fields {
		if c.strukt == nil || c.strukt.MatchString(f.Owner()) {
			rules = append(rules, c)
		}
	}
	_, err := apply(rules, f, rawOf(f))
	return err
}

func (r *Rules) ConfigureOpaqueStruct(o *binder.OpaqueStruct) error {
	matched, err := apply(r.opaqueStructs, o, rawOf(o))
	if err != nil {
		return err
	}
	for _, c := range matched {
		if c.DasType != "" {
			o.SetDasType(c.expand(c.DasType))
		}
		if c.PtrType != "" {
			o.SetPtrType(c.expand(c.PtrType))
		}
		if c.Annotation != "" {
			o.SetAnnotation(c.expand(c.Annotation))
		}
	}
	return nil
}

func (r *Rules) ConfigureFunction(f *binder.Function) error {
	matched, err := apply(r.functions, f, rawOf(f))
	if err != nil {
		return err
	}
	for _, c := range matched {
		if c.side != "" {
			f.SetSideEffects(c.side)
		}
	}
	return nil
}

func (r *Rules) ConfigureMacroConst(m *binder.MacroConst) error {
	matched, err := apply(r.macroConsts, m, m.Raw())
	if err != nil {
		return err
	}
	for _, c := range matched {
		if c.Value != "" {
			m.SetValue(c.expand(c.Value))
		}
	}
	return nil
}

func (r *Rules) ExtraFiles() []binder.ExtraFile {
	return r.extra
}
