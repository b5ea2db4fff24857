package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/funnelworks/movement-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Signal ingestion (requires API key authentication)
		v1.POST("/signals", middleware.APIKeyAuth(authCfg), handler.IngestSignal)

		// Company scoring endpoints (public read access)
		v1.GET("/companies/hot", handler.ListHotCompanies)
		v1.GET("/companies/:id/score", handler.GetCompanyScore)
		v1.GET("/companies/:id/signals", handler.ListCompanySignals)

		// Contact endpoints (public read access, authenticated writes)
		v1.POST("/contacts", middleware.APIKeyAuth(authCfg), handler.CreateContact)
		v1.GET("/contacts/:id", handler.GetContact)
		v1.GET("/contacts/:id/transitions", handler.ListTransitions)
		v1.GET("/contacts/:id/journal", handler.ListJournal)

		// Event detection (requires API key authentication)
		v1.POST("/contacts/:id/events", middleware.APIKeyAuth(authCfg), handler.DetectEvent)

		// Manual state override (requires full authentication)
		v1.POST("/contacts/:id/override", middleware.Auth(authCfg), handler.OverrideState)
	}
}
