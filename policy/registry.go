package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"dasbindgen/binder"
)

// Factory builds a statically linked policy for the header being bound
type Factory func(header string) (binder.Policy, error)

var factories = map[string]Factory{
	"default": defaultPolicy,
}

// ErrUnknownPolicy is returned for a reference that is neither a file nor a registered name
var ErrUnknownPolicy = errors.New("unknown policy")

// Register makes a policy available to Load by name. Registering a name
// twice panics.
func Register(name string, f Factory) {
	if _, dup := factories[name]; dup {
		panic("policy: Register called twice for " + name)
	}
	factories[name] = f
}

// Names lists the registered policies in sorted order
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves ref as a policy file when it names an existing file,
// otherwise as a registered policy name. The result is validated.
func Load(ref, header string) (binder.Policy, error) {
	if ref == "" {
		return nil, &binder.ConfigurationError{Subject: "policy", Err: errors.New("no policy given")}
	}

	var p binder.Policy
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		r, err := LoadFile(ref)
		if err != nil {
			return nil, err
		}
		p = r
	} else if f, ok := factories[ref]; ok {
		built, err := f(header)
		if err != nil {
			return nil, &binder.ConfigurationError{Subject: "policy " + ref, Err: err}
		}
		p = built
	} else {
		return nil, &binder.ConfigurationError{
			Subject: "policy " + ref,
			Err:     fmt.Errorf("%w: not a file and not one of %s", ErrUnknownPolicy, strings.Join(Names(), ", ")),
		}
	}

	if err := binder.ValidatePolicy(p); err != nil {
		return nil, err
	}
	return p, nil
}

// defaultPolicy binds everything and names the module after the header
func defaultPolicy(header string) (binder.Policy, error) {
	if header == "" {
		return nil, errors.New("the default policy needs a header")
	}
	return &Base{Module: ModuleNameFor(header)}, nil
}

// ModuleNameFor derives an identifier from a header path, "sdl/SDL-video.h"
// gives "SDL_video"
func ModuleNameFor(header string) string {
	base := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, base)
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "m" + name
	}
	return name
}
