// MODUL: registry
// ZWECK: Thread-sichere Registry fuer Encoder-Factories
// INPUT: Encoder-Name, Factory-Funktionen
// OUTPUT: Registrierte Factories
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), backbone.go (Factory)
// HINWEISE: Thread-sicher durch RWMutex; Implementierungen registrieren
// sich via init() in ihren jeweiligen Packages

package backbone

import (
	"sort"
	"sync"
)

// Registry verwaltet registrierte Encoder-Factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registriert eine Factory unter dem angegebenen Namen.
// Ueberschreibt existierende Eintraege ohne Warnung.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Get gibt die Factory fuer einen Namen zurueck.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// List gibt alle registrierten Namen sortiert zurueck.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry ist die prozessweite Registry.
var DefaultRegistry = NewRegistry()

// RegisterToDefault registriert eine Factory in der Default-Registry.
func RegisterToDefault(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}

// GetFromDefault holt eine Factory aus der Default-Registry.
func GetFromDefault(name string) (Factory, bool) {
	return DefaultRegistry.Get(name)
}

// ListFromDefault listet alle Namen der Default-Registry.
func ListFromDefault() []string {
	return DefaultRegistry.List()
}
