package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/hub"
	"github.com/nestline/hub-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to hub connections.
// One read goroutine handles inbound frames in receipt order; one writer
// goroutine drains the connection's outbound queue.
type WSHandler struct {
	hub          *hub.Hub
	log          *zerolog.Logger
	pingInterval time.Duration
	frameLimit   int
}

// NewWSHandler builds a new WebSocket handler. pingInterval of zero disables
// the server-side keepalive; frameLimit of zero disables rate limiting.
func NewWSHandler(h *hub.Hub, logger *zerolog.Logger, pingInterval time.Duration, frameLimit int) stdhttp.Handler {
	return &WSHandler{
		hub:          h,
		log:          logger,
		pingInterval: pingInterval,
		frameLimit:   frameLimit,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := h.hub.NewConn()
	h.log.Info().Str("conn_id", client.ID).Msg("ws connection established")

	// The request context dies with the socket; teardown gets its own.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.hub.Disconnect(cleanupCtx, client)
	}()

	client.Send(proto.Welcome())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	if h.pingInterval > 0 {
		go func() {
			errCh <- h.keepalive(ctx, conn)
		}()
	}

	err = <-errCh
	cancel() // stop the other goroutines

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Conn) error {
	limiter := newRateLimiter(h.frameLimit)
	defer limiter.stop()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			client.Send(proto.ErrorFrame("rate limit exceeded"))
			continue
		}

		h.hub.HandleFrame(ctx, client, raw)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Conn) error {
	for {
		select {
		case frame := <-client.Outbound():
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws frame")
				return err
			}
		case <-client.Closed():
			// Flush whatever is already queued, then stop.
			for {
				select {
				case frame := <-client.Outbound():
					if err := wsjson.Write(ctx, conn, frame); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// keepalive pings the peer at the configured interval. A peer that stops
// answering tears the connection down through the normal cleanup path.
func (h *WSHandler) keepalive(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
