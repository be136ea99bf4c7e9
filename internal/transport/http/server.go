package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/config"
	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
)

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Hub      *core.Hub
	Relay    *core.Relay
	Auth     *auth.Service
	Messages *messages.Service
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Status string `json:"status"`
	Online int    `json:"online"`
}

// NewServer builds the HTTP server. The websocket endpoint sits on the mux in
// front of gin: gin's response writer refuses to hijack once the upgrade
// headers have been flushed.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Relay, deps.Auth, cfg, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers every REST route on a gin engine.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/api/status", func(c *gin.Context) {
		online, err := deps.Hub.Online(c.Request.Context())
		if err != nil {
			c.JSON(stdhttp.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(stdhttp.StatusOK, StatusResponse{Status: "ok", Online: len(online)})
	})

	if cfg.UploadDir != "" && cfg.UploadBaseURL != "" {
		router.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	api := NewAPIHandlers(deps.Auth, logger)
	msgs := NewMessageHandlers(deps.Messages, deps.Relay, logger)
	users := NewUserHandlers(deps.Messages, logger)
	requireAuth := AuthMiddleware(deps.Auth, logger)

	authGroup := router.Group("/api/auth")
	authGroup.POST("/signup", api.Signup)
	authGroup.POST("/login", api.Login)
	authGroup.GET("/check", requireAuth, api.Check)
	authGroup.PUT("/update-profile", requireAuth, api.UpdateProfile)

	msgGroup := router.Group("/api/messages", requireAuth)
	msgGroup.GET("/users", msgs.Contacts)
	msgGroup.GET("/:id", msgs.History)
	msgGroup.PUT("/mark/:id", msgs.MarkSeen)
	msgGroup.POST("/send/:id", msgs.Send)

	router.GET("/api/users/search", requireAuth, users.SearchUsers)

	return router
}
