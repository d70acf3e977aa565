package site

import (
	"fmt"
	"sort"
	"strings"
)

// SourceFactory builds a configured source driver.
type SourceFactory func() (Source, error)

// DestinationFactory builds a configured destination driver.
type DestinationFactory func() (Destination, error)

// Registry maps site names to driver factories. It is filled once at startup.
type Registry struct {
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterSource adds a source factory under name.
func (r *Registry) RegisterSource(name string, f SourceFactory) error {
	key := normalizeName(name)
	if key == "" || f == nil {
		return fmt.Errorf("invalid source registration %q", name)
	}
	if _, ok := r.sources[key]; ok {
		return fmt.Errorf("duplicate source %q", key)
	}
	r.sources[key] = f
	return nil
}

// RegisterDestination adds a destination factory under name.
func (r *Registry) RegisterDestination(name string, f DestinationFactory) error {
	key := normalizeName(name)
	if key == "" || f == nil {
		return fmt.Errorf("invalid destination registration %q", name)
	}
	if _, ok := r.destinations[key]; ok {
		return fmt.Errorf("duplicate destination %q", key)
	}
	r.destinations[key] = f
	return nil
}

// UnknownSiteError is returned when a name has no registered driver.
type UnknownSiteError struct {
	Role      string
	Name      string
	Available []string
}

func (e *UnknownSiteError) Error() string {
	return fmt.Sprintf("%s %q not available (available: %s)", e.Role, e.Name, strings.Join(e.Available, ", "))
}

// Source builds the source registered under name. Names are case-insensitive.
func (r *Registry) Source(name string) (Source, error) {
	f, ok := r.sources[normalizeName(name)]
	if !ok {
		return nil, &UnknownSiteError{Role: "source", Name: name, Available: r.SourceNames()}
	}
	return f()
}

// Destination builds the destination registered under name.
func (r *Registry) Destination(name string) (Destination, error) {
	f, ok := r.destinations[normalizeName(name)]
	if !ok {
		return nil, &UnknownSiteError{Role: "destination", Name: name, Available: r.DestinationNames()}
	}
	return f()
}

// HasSource reports whether name is a registered source.
func (r *Registry) HasSource(name string) bool {
	_, ok := r.sources[normalizeName(name)]
	return ok
}

// HasDestination reports whether name is a registered destination.
func (r *Registry) HasDestination(name string) bool {
	_, ok := r.destinations[normalizeName(name)]
	return ok
}

// SourceNames returns the registered source names, sorted.
func (r *Registry) SourceNames() []string {
	return sortedKeys(r.sources)
}

// DestinationNames returns the registered destination names, sorted.
func (r *Registry) DestinationNames() []string {
	return sortedKeys(r.destinations)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
