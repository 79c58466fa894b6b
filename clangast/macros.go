package clangast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Macro is an object-like #define found by the raw scan
type Macro struct {
	Name  string
	Value string
	File  string
	Line  int
}

// The syntax tree has no macros left in it, so constants come from the text.
var defineRe = regexp.MustCompile(`^\s*#\s*define\s+([A-Za-z_][A-Za-z0-9_]*)\s+(.+)$`)

// ScanMacros collects `#define NAME VALUE` lines from r. Trailing // comments
// outside literals are stripped; lines without a value and function-like
// macros are skipped.
func ScanMacros(r io.Reader, file string) ([]Macro, error) {
	var macros []Macro

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		m := defineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		value := strings.TrimSpace(stripLineComment(m[2]))
		// continued lines are expressions split across lines, not literals
		if value == "" || strings.HasSuffix(value, "\\") {
			continue
		}

		macros = append(macros, Macro{Name: m[1], Value: value, File: file, Line: lineNum})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", file, err)
	}
	return macros, nil
}

// stripLineComment cuts s at the first // outside a string or character literal
func stripLineComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0 && c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			return s[:i]
		}
	}
	return s
}

// ScanMacroFile is ScanMacros over a file on disk
func ScanMacroFile(path string) ([]Macro, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ScanMacros(f, path)
}

// ErrHeaderNotFound is returned when a relative header is in none of the include dirs
var ErrHeaderNotFound = errors.New("header not found in include directories")

// ResolveHeader returns path unchanged when absolute, otherwise joined with
// the first include dir that contains it.
func ResolveHeader(path string, includeDirs []string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	for _, dir := range includeDirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, path)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrHeaderNotFound, path, strings.Join(includeDirs, ", "))
}
