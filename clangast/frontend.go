package clangast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// Tree is a parsed header: the typed root plus the generic decoded value
type Tree struct {
	Root *Node
	Raw  any
}

// Dump renders the raw tree as indented JSON with sorted keys
func (t *Tree) Dump() ([]byte, error) {
	raw := t.Raw
	if raw == nil && t.Root != nil {
		raw = t.Root.Raw()
	}
	return json.MarshalIndent(raw, "", "    ")
}

// Frontend turns a header into a syntax tree
type Frontend interface {
	Parse(ctx context.Context, header string, includeDirs []string) (*Tree, error)
}

// FrontendError reports a failed or unusable front-end run
type FrontendError struct {
	Command []string
	Stderr  string
	Err     error
}

func (e *FrontendError) Error() string {
	var sb strings.Builder
	sb.WriteString("front-end failed")
	if len(e.Command) > 0 {
		sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(e.Command, " ")))
	}
	sb.WriteString(": " + e.Err.Error())
	if e.Stderr != "" {
		sb.WriteString("\n" + e.Stderr)
	}
	return sb.String()
}

func (e *FrontendError) Unwrap() error {
	return e.Err
}

// Subprocess runs a clang executable and reads its JSON dump from stdout
type Subprocess struct {
	Exe string
}

// Args returns the command line for the given header, without the executable.
// -cc1 has to come first, include dirs keep their order.
func (s *Subprocess) Args(header string, includeDirs []string) []string {
	args := []string{"-cc1", "-ast-dump=json"}
	for _, dir := range includeDirs {
		if dir == "" {
			continue
		}
		args = append(args, "-I"+dir)
	}
	return append(args, header)
}

// Parse runs the front-end and decodes its output
func (s *Subprocess) Parse(ctx context.Context, header string, includeDirs []string) (*Tree, error) {
	command := append([]string{s.Exe}, s.Args(header, includeDirs)...)
	slog.Debug("running front-end", "command", strings.Join(command, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &FrontendError{Command: command, Stderr: tail(stderr.String(), 20), Err: err}
	}

	root, raw, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, &FrontendError{Command: command, Err: fmt.Errorf("parse syntax tree: %w", err)}
	}
	if root.Kind != KindTranslationUnit {
		return nil, &FrontendError{Command: command, Err: fmt.Errorf("expected %s at the root, got %s", KindTranslationUnit, root.Kind)}
	}

	slog.Debug("front-end finished", "nodes", len(root.Inner), "bytes", stdout.Len())
	return &Tree{Root: root, Raw: raw}, nil
}

// tail keeps the last n lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// NewFunc builds a front-end around an executable name. In-process
// front-ends ignore it.
type NewFunc func(exe string) Frontend

var frontends = map[string]NewFunc{
	"subprocess": func(exe string) Frontend { return &Subprocess{Exe: exe} },
}

// ErrUnknownFrontend is returned by New for unregistered names
var ErrUnknownFrontend = errors.New("unknown front-end")

// Register makes a front-end available by name
func Register(name string, fn NewFunc) {
	if _, ok := frontends[name]; ok {
		panic("clangast: front-end already registered: " + name)
	}
	frontends[name] = fn
}

// New returns the named front-end
func New(name, exe string) (Frontend, error) {
	fn, ok := frontends[name]
	if !ok {
		hint := ""
		if name == "libclang" {
			hint = " (rebuild with -tags libclang)"
		}
		return nil, fmt.Errorf("%w %q%s, available: %s", ErrUnknownFrontend, name, hint, strings.Join(Names(), ", "))
	}
	return fn(exe), nil
}

// Names lists the registered front-ends
func Names() []string {
	names := make([]string, 0, len(frontends))
	for name := range frontends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
