package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ejezie/Enact-Pricing/internal/config"
	"github.com/ejezie/Enact-Pricing/internal/middleware"
	"github.com/ejezie/Enact-Pricing/internal/services"
)

// SetupRoutes registers all HTTP routes on the Gin engine.
func SetupRoutes(r *gin.Engine, cfg *config.Config, handler *Handler, redisSvc *services.RedisClient) {
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(redisSvc, cfg.RateLimitMax, cfg.RateLimitWindow))

	api.GET("/health", handler.HealthCheck)

	api.POST("/session", handler.CreateSession)
	api.GET("/session/:token", handler.GetSession)
	api.POST("/session/:token/heartbeat", handler.Heartbeat)

	api.POST("/scrape", handler.Scrape)
	api.POST("/scrape/async", handler.ScrapeAsync)
	api.GET("/scrape/:token/stream", handler.StreamProgress)

	api.POST("/chat", handler.Chat)

	authed := api.Group("")
	authed.Use(middleware.ValidateSession(handler.sessions))
	authed.POST("/chat/clear", handler.ClearChat)
	authed.GET("/chat/history", handler.GetTranscript)
}
