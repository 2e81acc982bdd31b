package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nestline/hub-server/internal/auth"
	"github.com/nestline/hub-server/internal/config"
	"github.com/nestline/hub-server/internal/hub"
	"github.com/nestline/hub-server/internal/store"
)

// NewServer builds the HTTP server: the websocket endpoint plus the thin
// REST surface around it. The websocket handler is mounted on the outer
// mux rather than inside gin: the upgrade hijacks the connection, and
// gin's response writer refuses to hijack once the handshake status has
// been written through it.
func NewServer(h *hub.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(h, logger, cfg.PingInterval, cfg.FrameLimit))
	mux.Handle("/", NewRouter(h, authService, st, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter builds the gin router serving everything except the websocket
// endpoint.
func NewRouter(h *hub.Hub, authService *auth.Service, st store.Store, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(st, logger)
	settingsHandlers := NewSettingsHandlers(st, logger)
	hubHandlers := NewHubHandlers(h, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		authorized := api.Group("")
		authorized.Use(AuthMiddleware(authService, logger))
		{
			authorized.POST("/rooms", roomHandlers.CreateRoom)
			authorized.POST("/rooms/:id/members", roomHandlers.AddMember)
			authorized.GET("/rooms/:id/members", roomHandlers.ListMembers)

			authorized.GET("/settings/online-status", settingsHandlers.GetOnlineStatus)
			authorized.PUT("/settings/online-status", settingsHandlers.SetOnlineStatus)

			authorized.GET("/ws/stats", hubHandlers.Stats)
			authorized.GET("/ws/online/:username", hubHandlers.Online)
			authorized.POST("/ws/notify", hubHandlers.Notify)
		}
	}

	return router
}
