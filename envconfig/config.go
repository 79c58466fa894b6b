package envconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// Set via DASBIND_CLANG in the environment
	Clang string
	// Set via DASBIND_DEBUG in the environment
	Debug bool
	// Set via DASBIND_FRONTEND in the environment
	Frontend string
	// Set via DASBIND_INCLUDE_DIRS in the environment
	IncludeDirs []string
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"DASBIND_CLANG":        {"DASBIND_CLANG", Clang, "Front-end executable (default \"clang\")"},
		"DASBIND_DEBUG":        {"DASBIND_DEBUG", Debug, "Show additional debug information (e.g. DASBIND_DEBUG=1)"},
		"DASBIND_FRONTEND":     {"DASBIND_FRONTEND", Frontend, "Front-end implementation (default \"subprocess\")"},
		"DASBIND_INCLUDE_DIRS": {"DASBIND_INCLUDE_DIRS", IncludeDirs, fmt.Sprintf("Include directories separated by %q", string(os.PathListSeparator))},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = false
	if debug := clean("DASBIND_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	Clang = clean("DASBIND_CLANG")
	if Clang == "" {
		Clang = "clang"
	}

	Frontend = clean("DASBIND_FRONTEND")
	if Frontend == "" {
		Frontend = "subprocess"
	}

	IncludeDirs = nil
	if dirs := clean("DASBIND_INCLUDE_DIRS"); dirs != "" {
		for _, d := range filepath.SplitList(dirs) {
			if d != "" {
				IncludeDirs = append(IncludeDirs, d)
			}
		}
	}
}
