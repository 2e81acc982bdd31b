package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/hub"
)

// HubHandlers is the side-channel REST surface over the realtime hub, used
// by other backend components that are not socket clients themselves.
type HubHandlers struct {
	hub *hub.Hub
	log *zerolog.Logger
}

// NewHubHandlers creates a new hub handlers instance.
func NewHubHandlers(h *hub.Hub, logger *zerolog.Logger) *HubHandlers {
	return &HubHandlers{
		hub: h,
		log: logger,
	}
}

// StatsResponse reports hub-wide connection stats.
type StatsResponse struct {
	ConnectedUsers int `json:"connectedUsers"`
}

// OnlineResponse reports whether one user is online.
type OnlineResponse struct {
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

// NotifyRequest asks the hub to push a notification to a connected user.
type NotifyRequest struct {
	Username         string `json:"username" binding:"required"`
	NotificationType string `json:"notificationType" binding:"required"`
	Content          string `json:"content" binding:"required"`
}

// NotifyResponse reports whether the notification was handed to a
// connection.
type NotifyResponse struct {
	Delivered bool `json:"delivered"`
}

// Stats returns the connected-user count.
// GET /api/ws/stats
func (h *HubHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{ConnectedUsers: h.hub.ConnectedCount()})
}

// Online reports whether a specific user is online.
// GET /api/ws/online/:username
func (h *HubHandlers) Online(c *gin.Context) {
	username := c.Param("username")
	c.JSON(http.StatusOK, OnlineResponse{
		Username: username,
		IsOnline: h.hub.IsOnline(username),
	})
}

// Notify pushes a notification frame to a connected user. Delivery is best
// effort; an offline user simply yields delivered=false.
// POST /api/ws/notify
func (h *HubHandlers) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivered := h.hub.NotifyUser(req.Username, req.NotificationType, req.Content)
	if delivered {
		h.log.Info().Str("username", req.Username).Str("notification_type", req.NotificationType).Msg("notification injected")
	}
	c.JSON(http.StatusOK, NotifyResponse{Delivered: delivered})
}
