package hub

import "sync"

// Registry is the live map from identity to open connection. It is the single
// source of truth for who is online and the only mutable state shared across
// connection goroutines.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Conn  // username -> current connection
	byConn map[string]string // connection id -> username
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Conn),
		byConn: make(map[string]string),
	}
}

// Register binds a username to a connection, replacing any prior binding.
// The superseded connection, if any, is returned to the caller to deal with.
func (r *Registry) Register(username string, conn *Conn) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[username]
	if prev != nil && prev.ID == conn.ID {
		return nil
	}

	r.byUser[username] = conn
	r.byConn[conn.ID] = username
	if prev != nil {
		delete(r.byConn, prev.ID)
	}
	return prev
}

// Unregister removes the binding for a connection id. The username binding is
// only dropped when it still refers to this exact connection, so a connection
// that was superseded cannot knock out its replacement. wasCurrent reports
// whether this connection was still the live one for its user.
func (r *Registry) Unregister(connID string) (username string, wasCurrent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)

	if current := r.byUser[username]; current != nil && current.ID == connID {
		delete(r.byUser, username)
		return username, true
	}
	return username, false
}

// Lookup returns the open connection for a username, if any.
func (r *Registry) Lookup(username string) (*Conn, bool) {
	r.mu.RLock()
	conn := r.byUser[username]
	r.mu.RUnlock()

	if conn == nil || !conn.IsOpen() {
		return nil, false
	}
	return conn, true
}

// Snapshot returns all open connections except the excluded username. The
// slice is a copy; iterating it never observes concurrent mutation.
func (r *Registry) Snapshot(exclude string) []*Conn {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byUser))
	for username, conn := range r.byUser {
		if username == exclude {
			continue
		}
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	open := conns[:0]
	for _, conn := range conns {
		if conn.IsOpen() {
			open = append(open, conn)
		}
	}
	return open
}

// ForEachOpen calls f for every open registered connection, iterating over a
// snapshot so registration changes during the walk are safe.
func (r *Registry) ForEachOpen(f func(username string, conn *Conn)) {
	r.mu.RLock()
	type entry struct {
		username string
		conn     *Conn
	}
	entries := make([]entry, 0, len(r.byUser))
	for username, conn := range r.byUser {
		entries = append(entries, entry{username, conn})
	}
	r.mu.RUnlock()

	for _, e := range entries {
		if e.conn.IsOpen() {
			f(e.username, e.conn)
		}
	}
}

// Count returns the number of users with an open connection.
func (r *Registry) Count() int {
	n := 0
	r.ForEachOpen(func(string, *Conn) {
		n++
	})
	return n
}
