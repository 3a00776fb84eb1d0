// Package llm assembles configured text generators behind a profile registry.
package llm

import (
	"fmt"
	"strings"

	"tika/pkg/tika"
)

// Registry resolves configured generators by stable profile key.
//
// The generator map is copied on construction and remains immutable
// afterward, so Resolve is concurrency-safe for parallel handlers.
type Registry struct {
	generators map[string]tika.Generator
}

// NewRegistry constructs one immutable generator registry.
func NewRegistry(generators map[string]tika.Generator) (*Registry, error) {
	if len(generators) == 0 {
		return nil, fmt.Errorf("new generator registry: empty generators")
	}

	cloned := make(map[string]tika.Generator, len(generators))
	for key, generator := range generators {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("new generator registry: empty generator key")
		}
		if generator == nil {
			return nil, fmt.Errorf("new generator registry: generator %s is nil", trimmedKey)
		}
		if _, exists := cloned[trimmedKey]; exists {
			return nil, fmt.Errorf("new generator registry: duplicate generator key %s", trimmedKey)
		}
		cloned[trimmedKey] = generator
	}

	return &Registry{generators: cloned}, nil
}

// Resolve returns one configured generator by profile key.
func (r *Registry) Resolve(profile string) (tika.Generator, error) {
	if r == nil {
		return nil, fmt.Errorf("resolve generator: nil registry")
	}

	trimmed := strings.TrimSpace(profile)
	if trimmed == "" {
		return nil, fmt.Errorf("resolve generator: empty profile key")
	}

	resolved, exists := r.generators[trimmed]
	if !exists {
		return nil, fmt.Errorf("resolve generator: profile %s is not configured", trimmed)
	}

	return resolved, nil
}

var _ tika.GeneratorRegistry = (*Registry)(nil)
