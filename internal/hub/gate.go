package hub

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/auth"
	"github.com/nestline/hub-server/internal/proto"
)

// CredentialValidator verifies bearer credentials and answers presence
// privacy lookups. Implemented by the auth service.
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, token string) (auth.Identity, error)
	ShowOnlineStatus(ctx context.Context, userID int64) (bool, error)
}

// AuthResult is the explicit outcome of an authentication attempt.
type AuthResult struct {
	OK       bool
	Identity auth.Identity
	Reason   string
}

func authFailure(reason string) AuthResult {
	return AuthResult{Reason: reason}
}

// Gate promotes anonymous connections to authenticated ones.
type Gate struct {
	validator CredentialValidator
	registry  *Registry
	presence  *Presence
	log       *zerolog.Logger
}

// NewGate builds an authentication gate.
func NewGate(validator CredentialValidator, registry *Registry, presence *Presence, logger *zerolog.Logger) *Gate {
	return &Gate{
		validator: validator,
		registry:  registry,
		presence:  presence,
		log:       logger,
	}
}

// Authenticate validates the credential and, on success, binds the identity,
// registers the connection, acknowledges the client, and announces the user
// online. A failure leaves the connection open and unauthenticated; the
// client may retry.
func (g *Gate) Authenticate(ctx context.Context, conn *Conn, token string) AuthResult {
	if conn.State() == StateAuthenticated {
		// The binding is immutable for the life of the connection.
		return authFailure("already authenticated")
	}
	if strings.TrimSpace(token) == "" {
		return authFailure("token is required")
	}

	identity, err := g.validator.ValidateCredential(ctx, token)
	if err != nil {
		g.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("credential rejected")
		return authFailure("invalid token")
	}

	conn.bind(identity)
	superseded := g.registry.Register(identity.Username, conn)

	conn.Send(proto.AuthSuccess())

	if superseded != nil {
		// Last authentication wins; the replaced session is told and closed
		// rather than left orphaned from routing.
		superseded.Send(proto.ErrorFrame("session superseded by a newer connection"))
		superseded.Close()
		g.log.Info().
			Str("username", identity.Username).
			Str("old_conn_id", superseded.ID).
			Str("conn_id", conn.ID).
			Msg("superseded previous session")
	}

	g.log.Info().Str("username", identity.Username).Str("conn_id", conn.ID).Msg("socket authenticated")

	if superseded == nil {
		g.presence.Announce(ctx, identity, proto.StatusOnline)
	}

	return AuthResult{OK: true, Identity: identity}
}
