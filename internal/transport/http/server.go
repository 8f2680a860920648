package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
)

// NewServer builds the HTTP server: the classroom websocket plus the REST API.
func NewServer(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg, logger)))

	api := NewAPIHandlers(hub, authService, logger)
	router.POST("/api/teacher/login", api.TeacherLogin)
	router.GET("/api/status", api.Status)

	teacher := router.Group("/api")
	teacher.Use(TeacherAuthMiddleware(authService, logger))
	{
		teacher.GET("/history", api.History)
		teacher.GET("/roster", api.Roster)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
