package whisper

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Registry maps served model names to engines. Names are matched
// case-insensitively. A Registry is immutable once built, so lookups need no
// locking.
type Registry struct {
	engines map[string]Engine
	names   []string
}

func NewRegistry(engines map[string]Engine) (*Registry, error) {
	if len(engines) == 0 {
		return nil, errors.New("at least one model must be registered")
	}

	folded := make(map[string]Engine, len(engines))
	for name, engine := range engines {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, errors.New("model name must not be empty")
		}
		if engine == nil {
			return nil, fmt.Errorf("model %q has no engine", name)
		}
		if _, exists := folded[key]; exists {
			return nil, fmt.Errorf("model %q is registered more than once", key)
		}
		folded[key] = engine
	}

	names := make([]string, 0, len(folded))
	for name := range folded {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{engines: folded, names: names}, nil
}

func (r *Registry) Lookup(name string) (Engine, bool) {
	engine, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]
	return engine, ok
}

// Names returns the registered model names, lower-cased and sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
