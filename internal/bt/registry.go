package bt

import (
	"fmt"
	"sort"
)

// Category distinguishes the two leaf namespaces.
type Category string

const (
	CategoryAction    Category = "action"
	CategoryCondition Category = "condition"
)

// Factory constructs a fresh leaf node.
type Factory func() Node

// Registry maps leaf script names to factories, separately for Actions and
// Conditions.
//
// Invariant: each name is registered at most once per category.
type Registry struct {
	actions    map[string]Factory
	conditions map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actions:    make(map[string]Factory),
		conditions: make(map[string]Factory),
	}
}

// Register stores f under name in category.
//
// Precondition: name must be non-empty and f non-nil.
// Postcondition: returns error on an unknown category or a name collision.
func (r *Registry) Register(category Category, name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("bt.Registry: %s name must not be empty", category)
	}
	if f == nil {
		return fmt.Errorf("bt.Registry: %s %q has nil factory", category, name)
	}
	m, err := r.table(category)
	if err != nil {
		return err
	}
	if _, exists := m[name]; exists {
		return fmt.Errorf("bt.Registry: %s %q already registered", category, name)
	}
	m[name] = f
	return nil
}

// RegisterAction registers an Action factory.
func (r *Registry) RegisterAction(name string, f Factory) error {
	return r.Register(CategoryAction, name, f)
}

// RegisterCondition registers a Condition factory.
func (r *Registry) RegisterCondition(name string, f Factory) error {
	return r.Register(CategoryCondition, name, f)
}

// Lookup returns the factory for name in category.
func (r *Registry) Lookup(category Category, name string) (Factory, bool) {
	m, err := r.table(category)
	if err != nil {
		return nil, false
	}
	f, ok := m[name]
	return f, ok
}

// Action returns the Action factory for name.
func (r *Registry) Action(name string) (Factory, bool) {
	return r.Lookup(CategoryAction, name)
}

// Condition returns the Condition factory for name.
func (r *Registry) Condition(name string) (Factory, bool) {
	return r.Lookup(CategoryCondition, name)
}

// Actions returns the registered Action names, sorted.
func (r *Registry) Actions() []string { return sortedKeys(r.actions) }

// Conditions returns the registered Condition names, sorted.
func (r *Registry) Conditions() []string { return sortedKeys(r.conditions) }

func (r *Registry) table(category Category) (map[string]Factory, error) {
	switch category {
	case CategoryAction:
		return r.actions, nil
	case CategoryCondition:
		return r.conditions, nil
	default:
		return nil, fmt.Errorf("bt.Registry: unknown category %q", category)
	}
}

func sortedKeys(m map[string]Factory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
