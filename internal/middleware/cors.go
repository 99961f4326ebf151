// cors.go configures Cross-Origin Resource Sharing (CORS).
//
// A browser front-end on another origin uploads files and then reads the
// conversion headers off the PDF response, so those headers must be exposed.
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// exposedHeaders are readable by browser scripts on other origins.
var exposedHeaders = []string{
	"Content-Length", "Content-Disposition", "Retry-After",
	"X-RateLimit-Limit", "X-RateLimit-Remaining",
	"X-Conversion-ID", "X-Page-Count", "X-Outline-Entries",
}

// CORS returns configured CORS middleware.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "X-Admin-Key"},
		ExposeHeaders:    exposedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour, // Cache preflight responses
	})
}
