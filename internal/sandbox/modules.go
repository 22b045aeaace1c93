package sandbox

import (
	"fmt"
	"sort"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// knownModules maps allow-listable module names to their implementations.
// Allow-listing a name both binds the module object in the scope and makes
// its members loadable via load().
var knownModules = map[string]*starlarkstruct.Module{
	"math": starlarkmath.Module,
	"time": starlarktime.Module,
	"json": starlarkjson.Module,
}

// KnownModuleNames returns every module name an allow-list may contain.
func KnownModuleNames() []string {
	names := make([]string, 0, len(knownModules))
	for name := range knownModules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveModules validates an allow-list and returns the module bindings.
func resolveModules(names []string) (starlark.StringDict, error) {
	dict := starlark.StringDict{}
	for _, name := range names {
		mod, ok := knownModules[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownModule, name, KnownModuleNames())
		}
		dict[name] = mod
	}
	return dict, nil
}
