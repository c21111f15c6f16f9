package extension

import (
	"fmt"
	"sort"
)

var builtins = map[string]func() Extension{
	"cd":      func() Extension { return &Cd{} },
	"history": func() Extension { return &History{} },
	"cwd":     func() Extension { return &Cwd{} },
	"colors":  func() Extension { return &Colors{} },
}

// BuiltinNames lists the extensions that can be enabled by name.
func BuiltinNames() []string {
	var out []string
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New creates the built-in extension called name.
func New(name string) (Extension, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown extension %q", name)
	}
	return ctor(), nil
}

// Load registers the named built-ins in order.
func (r *Registry) Load(names ...string) error {
	for _, name := range names {
		ext, err := New(name)
		if err != nil {
			return err
		}
		if err := r.Register(ext); err != nil {
			return err
		}
	}
	return nil
}
