package uart

import "sync"

// Registry is the peripheral's set of live connection handles, used for
// notification fan-out. Insertion order is irrelevant.
type Registry struct {
	mu    sync.Mutex
	conns map[ConnHandle]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnHandle]struct{})}
}

// Add records a handle. Adding a present handle is a no-op.
func (r *Registry) Add(conn ConnHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = struct{}{}
}

// Remove drops a handle if present and reports whether it was.
func (r *Registry) Remove(conn ConnHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[conn]
	delete(r.conns, conn)
	return ok
}

// Contains reports whether a handle is registered.
func (r *Registry) Contains(conn ConnHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[conn]
	return ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Snapshot returns the handles registered at this instant. Fan-out iterates
// the snapshot, so handles added afterwards are not retroactively included.
func (r *Registry) Snapshot() []ConnHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnHandle, 0, len(r.conns))
	for conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

// Clear removes every handle.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = make(map[ConnHandle]struct{})
}
