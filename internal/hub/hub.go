package hub

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/proto"
)

// Hub is the realtime communication core. It owns the connection registry
// and wires the authentication gate, message router, and presence
// broadcaster together. Transports hand it raw frames; other backend
// components reach connected users through its side-channel methods.
//
// The hub is a volatile relay: nothing it carries is persisted and delivery
// is best effort.
type Hub struct {
	registry *Registry
	gate     *Gate
	presence *Presence
	router   *Router
	log      *zerolog.Logger

	sendBuffer int
}

// New constructs a hub. sendBuffer sizes each connection's outbound queue.
func New(validator CredentialValidator, rooms MembershipResolver, logger *zerolog.Logger, sendBuffer int) *Hub {
	registry := NewRegistry()
	presence := NewPresence(validator, registry, logger)
	gate := NewGate(validator, registry, presence, logger)
	router := NewRouter(gate, registry, presence, rooms, logger)

	return &Hub{
		registry:   registry,
		gate:       gate,
		presence:   presence,
		router:     router,
		log:        logger,
		sendBuffer: sendBuffer,
	}
}

// NewConn registers nothing yet; it just creates an unauthenticated
// connection sized for this hub.
func (h *Hub) NewConn() *Conn {
	return NewConn(h.sendBuffer)
}

// HandleFrame processes one inbound frame from a connection. Frames from a
// single connection must be handed over in receipt order; across connections
// this is safe to call concurrently.
func (h *Hub) HandleFrame(ctx context.Context, conn *Conn, raw []byte) {
	h.router.Route(ctx, conn, raw)
}

// Disconnect is the single teardown path for a connection. It unregisters
// the connection and, when it was still the user's live session, announces
// the user offline. Safe to call more than once; everything after the first
// call is a no-op.
func (h *Hub) Disconnect(ctx context.Context, conn *Conn) {
	conn.cleanOnce.Do(func() {
		conn.Close()

		username, wasCurrent := h.registry.Unregister(conn.ID)
		if !wasCurrent {
			return
		}

		h.log.Info().Str("username", username).Str("conn_id", conn.ID).Msg("socket disconnected")

		if identity, ok := conn.Identity(); ok {
			h.presence.Announce(ctx, identity, proto.StatusOffline)
		}
	})
}

// NotifyUser pushes a notification frame to a connected user on behalf of
// another backend component. Returns false when the user is not connected.
func (h *Hub) NotifyUser(username, notificationType, content string) bool {
	conn, ok := h.registry.Lookup(username)
	if !ok {
		return false
	}
	return conn.Send(proto.NewNotificationEvent("", notificationType, content))
}

// IsOnline reports whether the user has an open, authenticated connection.
func (h *Hub) IsOnline(username string) bool {
	_, ok := h.registry.Lookup(username)
	return ok
}

// ConnectedCount returns the number of users currently connected.
func (h *Hub) ConnectedCount() int {
	return h.registry.Count()
}
