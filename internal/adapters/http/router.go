package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/recbit/meetrec/internal/config"
)

func SetupRouter(cfg *config.Config, ctl *Controller, hub *EventHub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", ctl.Health)

	api := r.Group("/api")

	api.POST("/sessions", ctl.StartSession)
	api.DELETE("/sessions/:id", ctl.StopSession)
	api.GET("/sessions", ctl.ListSessions)
	api.GET("/sessions/:id/status", ctl.SessionStatus)

	api.GET("/ws/events", hub.HandleEvents)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
