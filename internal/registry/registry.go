package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/vk/assetgraph/internal/node"
)

// Module is the interface that all node modules must implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// DuplicateTypeError is returned when a type name is registered twice.
type DuplicateTypeError struct {
	Type string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("node type %q is already registered", e.Type)
}

// UnknownTypeError is returned when a type name has no registered factory.
type UnknownTypeError struct {
	Type  string
	Known []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("node type %q not found. Available types: [%s]", e.Type, strings.Join(e.Known, ", "))
}

// Registry holds the node factories of a single application instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]node.Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]node.Factory)}
}

// Register adds factory under typeName.
func (r *Registry) Register(typeName string, factory node.Factory) error {
	if typeName == "" {
		return fmt.Errorf("node type name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("node type %q: factory must not be nil", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return &DuplicateTypeError{Type: typeName}
	}
	slog.Debug("Registering node type.", "type", typeName)
	r.factories[typeName] = factory
	return nil
}

// Resolve returns the factory registered under typeName.
func (r *Registry) Resolve(typeName string) (node.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[typeName]
	if !ok {
		return nil, &UnknownTypeError{
			Type:  typeName,
			Known: slices.Sorted(maps.Keys(r.factories)),
		}
	}
	return f, nil
}

// Types returns every registered type name, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// RegisterModules registers each module in turn and stops at the first error.
func (r *Registry) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return fmt.Errorf("registering module %T: %w", m, err)
		}
	}
	return nil
}
