package detail

import "sync"

// Registry tracks the live view of each movie.
type Registry struct {
	mu    sync.Mutex
	views map[int]*View
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[int]*View)}
}

// Open starts a fresh view for movieID, closing any previous one so its
// pending results are dropped.
func (r *Registry) Open(movieID int) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.views[movieID]; ok {
		prev.Close()
	}
	v := NewView(movieID)
	r.views[movieID] = v
	return v
}

// Get returns the live view for movieID, creating one if none is open.
func (r *Registry) Get(movieID int) *View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[movieID]; ok {
		return v
	}
	v := NewView(movieID)
	r.views[movieID] = v
	return v
}

// Lookup returns the live view for movieID if one is open.
func (r *Registry) Lookup(movieID int) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[movieID]
	return v, ok
}
