// Package source holds the connector registry shared by the collector and
// processor. The registry is populated once at startup and read-only after.
package source

import (
	"sort"

	"github.com/rentifier/rentifier/internal/domain"
)

// Registry maps source names to their connectors.
type Registry struct {
	connectors map[string]domain.Connector
}

// NewRegistry builds a registry from the given connectors, keyed by Name().
func NewRegistry(connectors ...domain.Connector) *Registry {
	m := make(map[string]domain.Connector, len(connectors))
	for _, c := range connectors {
		m[c.Name()] = c
	}
	return &Registry{connectors: m}
}

// Lookup returns the connector registered under name, if any.
func (r *Registry) Lookup(name string) (domain.Connector, bool) {
	c, ok := r.connectors[name]
	return c, ok
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for n := range r.connectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
