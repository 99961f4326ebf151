// Package middleware provides HTTP middleware for the API.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing. This is similar to Express.js
// middleware, but with explicit control flow.
package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// Store is the lookup the auth middleware needs. *database.DB implements it.
type Store interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// contextKey is a custom type for context keys to avoid collisions.
// Go Pattern: Use unexported types for context keys so other packages
// can't accidentally overwrite your values.
type contextKey string

const apiKeyContextKey contextKey = "api_key"

// APIKeyAuth returns middleware that validates the X-API-Key header.
//
// How it works:
// 1. Read the X-API-Key header
// 2. Hash it (we never store raw keys)
// 3. Look up the hash in the database
// 4. If valid, store the key info in the request context
// 5. If invalid, return 401 Unauthorized
func APIKeyAuth(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader("X-API-Key")
		if rawKey == "" {
			abortUnauthorized(c, "Missing X-API-Key header. Create an API key via POST /api/v1/keys")
			return
		}

		apiKey, err := store.GetAPIKeyByHash(c.Request.Context(), HashAPIKey(rawKey))
		if err != nil {
			abortUnauthorized(c, "Invalid or revoked API key")
			return
		}

		setAPIKey(c, store, apiKey)
		c.Next()
	}
}

// setAPIKey stores the authenticated key and bumps its last_used_at in the
// background.
func setAPIKey(c *gin.Context, store Store, apiKey *models.APIKey) {
	// Go Pattern: Gin uses its own context (different from context.Context).
	// c.Set() stores values that handlers can retrieve with c.Get().
	c.Set(string(apiKeyContextKey), apiKey)

	// The request context is cancelled as soon as the handler returns, so the
	// background update gets a detached one.
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := store.UpdateAPIKeyLastUsed(ctx, apiKey.ID); err != nil {
			log.Printf("⚠️  Failed to update last_used_at for key %s: %v", apiKey.KeyPrefix, err)
		}
	}()
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
}

// GetAPIKey retrieves the authenticated API key from the request context.
// Call this in your handlers after the auth middleware has run.
func GetAPIKey(c *gin.Context) *models.APIKey {
	val, exists := c.Get(string(apiKeyContextKey))
	if !exists {
		return nil
	}
	// Go Pattern: Type assertion — converting interface{} to a concrete type.
	// The comma-ok idiom (val, ok := ...) is safe — it won't panic if wrong type.
	key, ok := val.(*models.APIKey)
	if !ok {
		return nil
	}
	return key
}

// HashAPIKey creates a SHA-256 hash of an API key.
// We store hashes, not raw keys — same principle as password hashing.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}
