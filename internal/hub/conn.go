package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nestline/hub-server/internal/auth"
)

// State is the authentication state of a connection.
type State int

const (
	// StateUnauthenticated is the state of a freshly accepted connection.
	StateUnauthenticated State = iota
	// StateAuthenticated means the connection is bound to an identity.
	StateAuthenticated
)

// Conn is a live connection as seen by the hub. The transport layer owns the
// socket; the hub owns the identity binding and the outbound queue. Outbound
// frames are drained by a single writer goroutine, which keeps writes on one
// connection serialized even when concurrent fan-outs target it.
type Conn struct {
	ID string

	mu       sync.RWMutex
	state    State
	identity auth.Identity

	outbound  chan any
	closed    chan struct{}
	closeOnce sync.Once
	cleanOnce sync.Once
}

// NewConn constructs an unauthenticated connection with a buffered outbound
// queue of the given size.
func NewConn(buffer int) *Conn {
	if buffer <= 0 {
		buffer = 32
	}
	return &Conn{
		ID:       uuid.NewString(),
		outbound: make(chan any, buffer),
		closed:   make(chan struct{}),
	}
}

// State returns the connection's authentication state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the bound identity. ok is false until the connection has
// authenticated.
func (c *Conn) Identity() (auth.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.state == StateAuthenticated
}

// bind attaches an identity and moves the connection to the authenticated
// state. The binding is immutable once set.
func (c *Conn) bind(identity auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAuthenticated {
		return
	}
	c.identity = identity
	c.state = StateAuthenticated
}

// Send enqueues a frame for delivery. Delivery is best effort: frames are
// dropped when the connection is closed or its queue is full.
func (c *Conn) Send(frame any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.outbound <- frame:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}

// Outbound is drained by the transport's writer goroutine.
func (c *Conn) Outbound() <-chan any {
	return c.outbound
}

// Close marks the connection closed. Safe to call multiple times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Closed is signalled when the connection has been closed.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// IsOpen reports whether the connection is still open.
func (c *Conn) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}
