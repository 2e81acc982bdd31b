package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/store"
)

// SettingsHandlers exposes the per-user preferences the hub consults.
type SettingsHandlers struct {
	settings store.SettingsStore
	log      *zerolog.Logger
}

// NewSettingsHandlers creates a new settings handlers instance.
func NewSettingsHandlers(settings store.SettingsStore, logger *zerolog.Logger) *SettingsHandlers {
	return &SettingsHandlers{
		settings: settings,
		log:      logger,
	}
}

// OnlineStatusRequest represents the visibility toggle request body.
type OnlineStatusRequest struct {
	ShowOnlineStatus *bool `json:"showOnlineStatus" binding:"required"`
}

// OnlineStatusResponse represents the visibility setting in responses.
type OnlineStatusResponse struct {
	ShowOnlineStatus bool `json:"showOnlineStatus"`
}

// GetOnlineStatus returns the caller's presence visibility preference.
// GET /api/settings/online-status
func (h *SettingsHandlers) GetOnlineStatus(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	settings, err := h.settings.GetSettings(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load settings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, OnlineStatusResponse{ShowOnlineStatus: settings.ShowOnlineStatus})
}

// SetOnlineStatus updates the caller's presence visibility preference.
// PUT /api/settings/online-status
func (h *SettingsHandlers) SetOnlineStatus(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req OnlineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.settings.SetShowOnlineStatus(c.Request.Context(), uid, *req.ShowOnlineStatus); err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update settings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, OnlineStatusResponse{ShowOnlineStatus: *req.ShowOnlineStatus})
}
