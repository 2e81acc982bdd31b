package hub

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/nestline/hub-server/internal/auth"
	"github.com/nestline/hub-server/internal/proto"
)

// Presence emits online/offline announcements and presence snapshots, both
// gated by each affected user's visibility preference.
type Presence struct {
	validator CredentialValidator
	registry  *Registry
	log       *zerolog.Logger
}

// NewPresence builds a presence broadcaster.
func NewPresence(validator CredentialValidator, registry *Registry, logger *zerolog.Logger) *Presence {
	return &Presence{
		validator: validator,
		registry:  registry,
		log:       logger,
	}
}

// Announce fans a presence change out to every other open connection. When
// the user has disabled online-status visibility the announcement is
// suppressed entirely.
func (p *Presence) Announce(ctx context.Context, identity auth.Identity, status string) {
	show, err := p.validator.ShowOnlineStatus(ctx, identity.UserID)
	if err != nil {
		p.log.Error().Err(err).Str("username", identity.Username).Msg("presence visibility lookup failed")
		return
	}
	if !show {
		p.log.Debug().Str("username", identity.Username).Msg("online status hidden, skipping announcement")
		return
	}

	frame := proto.NewUserStatus(status, proto.StatusEntry{
		UserID:   identity.UserID,
		Username: identity.Username,
		IsOnline: status == proto.StatusOnline,
		Presence: status,
	})

	for _, conn := range p.registry.Snapshot(identity.Username) {
		conn.Send(frame)
	}
}

// Snapshot lists the online users visible to the requester, excluding the
// requester and anyone who has hidden their online status.
func (p *Presence) Snapshot(ctx context.Context, requester auth.Identity) []proto.StatusEntry {
	conns := p.registry.Snapshot(requester.Username)

	return lo.FilterMap(conns, func(conn *Conn, _ int) (proto.StatusEntry, bool) {
		identity, ok := conn.Identity()
		if !ok {
			return proto.StatusEntry{}, false
		}

		show, err := p.validator.ShowOnlineStatus(ctx, identity.UserID)
		if err != nil {
			p.log.Warn().Err(err).Str("username", identity.Username).Msg("skipping user in presence snapshot")
			return proto.StatusEntry{}, false
		}
		if !show {
			return proto.StatusEntry{}, false
		}

		return proto.StatusEntry{
			UserID:   identity.UserID,
			Username: identity.Username,
			IsOnline: true,
			Presence: proto.StatusOnline,
		}, true
	})
}
