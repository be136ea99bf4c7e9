package core

import "sort"

// Registry maps identities to their live connection. At most one handle per
// identity is kept; the last Register wins. Implementations are not required
// to be safe for concurrent use: the hub owns its registry and touches it
// from a single goroutine.
type Registry interface {
	// Register stores or overwrites the handle for id.
	Register(id UserID, client *Client)
	// Unregister removes id; absent ids are a no-op.
	Unregister(id UserID)
	// Lookup returns the handle for id; false means "not reachable for push".
	Lookup(id UserID) (*Client, bool)
	// Identities returns the registered identities in sorted order.
	Identities() []UserID
	// Clients returns every registered handle.
	Clients() []*Client
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	conns map[UserID]*Client
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[UserID]*Client)}
}

func (r *MemoryRegistry) Register(id UserID, client *Client) {
	r.conns[id] = client
}

func (r *MemoryRegistry) Unregister(id UserID) {
	delete(r.conns, id)
}

func (r *MemoryRegistry) Lookup(id UserID) (*Client, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *MemoryRegistry) Identities() []UserID {
	ids := make([]UserID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *MemoryRegistry) Clients() []*Client {
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

var _ Registry = (*MemoryRegistry)(nil)
