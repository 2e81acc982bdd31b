package hub

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/auth"
	"github.com/nestline/hub-server/internal/proto"
)

// MembershipResolver resolves a room id to the usernames of its members.
// Implemented by the room store.
type MembershipResolver interface {
	RoomMemberNames(ctx context.Context, roomID int64) ([]string, error)
}

// Router dispatches inbound frames to the right handler and resolves
// delivery targets.
type Router struct {
	gate     *Gate
	registry *Registry
	presence *Presence
	rooms    MembershipResolver
	log      *zerolog.Logger
}

// NewRouter builds a message router.
func NewRouter(gate *Gate, registry *Registry, presence *Presence, rooms MembershipResolver, logger *zerolog.Logger) *Router {
	return &Router{
		gate:     gate,
		registry: registry,
		presence: presence,
		rooms:    rooms,
		log:      logger,
	}
}

// Route decodes one raw inbound frame and processes it to completion.
// Failures never close the connection; they come back as error frames.
func (rt *Router) Route(ctx context.Context, conn *Conn, raw []byte) {
	in, err := proto.ParseInbound(raw)
	if err != nil {
		conn.Send(proto.ErrorFrame("malformed frame"))
		return
	}

	// ping and authenticate are the only frames allowed in any state.
	switch in.Type {
	case proto.TypePing:
		conn.Send(proto.Pong())
		return
	case proto.TypeAuthenticate:
		rt.handleAuthenticate(ctx, conn, in)
		return
	}

	identity, ok := conn.Identity()
	if !ok {
		conn.Send(proto.ErrorFrame("not authenticated"))
		return
	}

	switch in.Type {
	case proto.TypeMessage:
		rt.handleMessage(ctx, conn, identity, in)
	case proto.TypeTyping:
		rt.handleTyping(conn, identity, in)
	case proto.TypeNotification:
		rt.handleNotification(conn, identity, in)
	case proto.TypeStatusRequest:
		conn.Send(proto.NewStatusResponse(rt.presence.Snapshot(ctx, identity)))
	default:
		conn.Send(proto.ErrorFrame(fmt.Sprintf("unknown message type: %s", in.Type)))
	}
}

func (rt *Router) handleAuthenticate(ctx context.Context, conn *Conn, in proto.Inbound) {
	var data proto.AuthenticateData
	if err := in.Decode(&data); err != nil {
		conn.Send(proto.ErrorFrame("malformed authenticate frame"))
		return
	}

	if result := rt.gate.Authenticate(ctx, conn, data.Token); !result.OK {
		conn.Send(proto.ErrorFrame(result.Reason))
	}
}

func (rt *Router) handleMessage(ctx context.Context, conn *Conn, sender auth.Identity, in proto.Inbound) {
	var data proto.MessageData
	if err := in.Decode(&data); err != nil {
		conn.Send(proto.ErrorFrame("malformed message frame"))
		return
	}

	if strings.TrimSpace(data.Content) == "" {
		conn.Send(proto.ErrorFrame("message content is required"))
		return
	}

	senderRef := proto.UserRef{
		ID:          sender.UserID,
		Username:    sender.Username,
		DisplayName: sender.DisplayName,
	}

	switch {
	case data.Recipient != "":
		frame := proto.NewChatMessage(senderRef, 0, data.Content)
		if recipient, ok := rt.registry.Lookup(data.Recipient); ok {
			recipient.Send(frame)
		}
		// Echo back so the sending client renders its own message without a
		// round trip.
		conn.Send(frame)

	case data.RoomID != "":
		roomID, err := strconv.ParseInt(data.RoomID, 10, 64)
		if err != nil {
			conn.Send(proto.ErrorFrame("invalid room id"))
			return
		}

		members, err := rt.rooms.RoomMemberNames(ctx, roomID)
		if err != nil {
			rt.log.Error().Err(err).Int64("room_id", roomID).Msg("room membership lookup failed")
			conn.Send(proto.ErrorFrame("room not found"))
			return
		}

		frame := proto.NewChatMessage(senderRef, roomID, data.Content)
		delivered := 0
		for _, member := range members {
			if member == sender.Username {
				continue
			}
			if memberConn, ok := rt.registry.Lookup(member); ok {
				if memberConn.Send(frame) {
					delivered++
				}
			}
		}
		rt.log.Debug().
			Str("from", sender.Username).
			Int64("room_id", roomID).
			Int("members", len(members)).
			Int("delivered", delivered).
			Msg("room message relayed")

	default:
		conn.Send(proto.ErrorFrame("message target required"))
	}
}

func (rt *Router) handleTyping(conn *Conn, sender auth.Identity, in proto.Inbound) {
	var data proto.TypingData
	if err := in.Decode(&data); err != nil {
		conn.Send(proto.ErrorFrame("malformed typing frame"))
		return
	}

	frame := proto.NewTypingEvent(sender.Username, data.IsTyping)

	if data.Recipient != "" {
		if recipient, ok := rt.registry.Lookup(data.Recipient); ok {
			recipient.Send(frame)
		}
		return
	}

	for _, other := range rt.registry.Snapshot(sender.Username) {
		other.Send(frame)
	}
}

func (rt *Router) handleNotification(conn *Conn, sender auth.Identity, in proto.Inbound) {
	var data proto.NotificationData
	if err := in.Decode(&data); err != nil {
		conn.Send(proto.ErrorFrame("malformed notification frame"))
		return
	}

	if data.NotificationType == "" || data.Content == "" {
		conn.Send(proto.ErrorFrame("notification type and content are required"))
		return
	}

	frame := proto.NewNotificationEvent(sender.Username, data.NotificationType, data.Content)

	if data.TargetUser != "" {
		if target, ok := rt.registry.Lookup(data.TargetUser); ok {
			target.Send(frame)
		}
		return
	}

	for _, other := range rt.registry.Snapshot(sender.Username) {
		other.Send(frame)
	}
}
