package creature

import (
	"sort"
	"sync"
)

// Registry holds the current template for each creature ID.
//
// Registry is safe for concurrent use; the watcher replaces entries while the
// spawner reads them.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates a Registry seeded with templates.
//
// Postcondition: Later entries win when IDs repeat.
func NewRegistry(templates ...*Template) *Registry {
	r := &Registry{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		r.templates[t.ID] = t
	}
	return r
}

// LoadRegistry loads every template in dir into a new Registry.
func LoadRegistry(dir string) (*Registry, error) {
	templates, err := LoadTemplates(dir)
	if err != nil {
		return nil, err
	}
	return NewRegistry(templates...), nil
}

// Get returns the template registered under id.
func (r *Registry) Get(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// Put registers t, replacing any template with the same ID.
//
// Precondition: t has passed Validate.
func (r *Registry) Put(t *Template) {
	r.mu.Lock()
	r.templates[t.ID] = t
	r.mu.Unlock()
}

// Remove drops the template registered under id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.templates, id)
	r.mu.Unlock()
}

// IDs returns all registered creature IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RemoveSource drops every template loaded from path and returns their IDs.
func (r *Registry) RemoveSource(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, t := range r.templates {
		if t.source != "" && t.source == path {
			delete(r.templates, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}
