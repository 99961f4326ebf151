// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/handlers"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, auth middleware.Store, rateLimiter *middleware.RateLimiter, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(allowedOrigins))

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.GET("/api/v1/ready", h.Ready)

	// API Documentation
	r.GET("/api/docs", h.ServeSwaggerUI)
	r.GET("/api/docs/openapi.yaml", h.ServeOpenAPISpec)

	// --- Admin routes (X-Admin-Key checked by the handler) ---
	r.POST("/api/v1/keys", h.CreateAPIKey)
	r.GET("/api/v1/keys", h.ListAPIKeys)
	r.DELETE("/api/v1/keys/:id", h.RevokeAPIKey)

	// --- Auth Routes — public ---
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)

	// --- JWT-protected routes ---
	jwtProtected := r.Group("/api/v1/auth")
	jwtProtected.Use(middleware.JWTAuth(auth, h.JWTSecret))
	{
		jwtProtected.GET("/me", h.GetMe)
		jwtProtected.POST("/refresh", h.RefreshToken)
		jwtProtected.POST("/keys", h.CreateUserAPIKey)
	}

	// --- Conversion routes (API key OR JWT) ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.DualAuth(auth, h.JWTSecret))
	protected.Use(rateLimiter.RateLimit())
	{
		protected.POST("/convert", h.Convert)
		protected.GET("/conversions", h.ListConversions)
		protected.GET("/conversions/:id", h.GetConversion)
	}

	// --- Webhook management (API key only: webhooks belong to a key) ---
	webhooks := r.Group("/api/v1/webhooks")
	webhooks.Use(middleware.APIKeyAuth(auth))
	{
		webhooks.POST("", h.CreateWebhook)
		webhooks.GET("", h.ListWebhooks)
		webhooks.GET("/deliveries", h.ListWebhookDeliveries)
		webhooks.GET("/:id/deliveries", h.ListDeliveriesForWebhook)
		webhooks.PATCH("/:id", h.UpdateWebhook)
		webhooks.DELETE("/:id", h.DeleteWebhook)
	}

	return r
}
