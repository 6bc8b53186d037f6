package evaluate

import (
	"sort"
	"sync"
)

// Registry holds views by id.
type Registry struct {
	mu    sync.Mutex
	views map[string]*View
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*View)}
}

// Get returns the view with id.
func (r *Registry) Get(id string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

// Open returns the view with id, creating it when absent.
func (r *Registry) Open(id string) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[id]; ok {
		return v
	}
	v := NewView(id)
	r.views[id] = v
	activeViews.Set(float64(len(r.views)))
	return v
}

// Close closes and forgets the view with id. It reports whether the view
// existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	v, ok := r.views[id]
	if ok {
		delete(r.views, id)
		activeViews.Set(float64(len(r.views)))
	}
	r.mu.Unlock()

	if ok {
		v.Close()
	}
	return ok
}

// IDs returns the ids of all open views in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
