// apikeys.go handles API key management endpoints.
package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// apiKeyPrefix marks keys issued by this service.
const apiKeyPrefix = "c2p_"

// CreateAPIKey generates a new API key.
// POST /api/v1/keys
//
// Security: This endpoint requires the X-Admin-Key header in production.
// In development (when ADMIN_API_KEY is not set), the endpoint is open for bootstrapping.
//
// Request body:
//
//	{"name": "My App", "rate_limit": 200}
//
// Response includes the raw key — SAVE IT! It's only shown once.
func (h *Handler) CreateAPIKey(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}
	h.issueAPIKey(c, nil)
}

// CreateUserAPIKey lets a signed-in user issue a key for their own scripts.
// Conversions made with it show up in the user's history.
// POST /api/v1/auth/keys
func (h *Handler) CreateUserAPIKey(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Not authenticated",
			Code:    http.StatusUnauthorized,
		})
		return
	}
	h.issueAPIKey(c, &user.ID)
}

func (h *Handler) issueAPIKey(c *gin.Context, userID *string) {
	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "name is required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	// Go Pattern: crypto/rand is the cryptographically secure random source.
	// NEVER use math/rand for security-sensitive things like API keys!
	rawKey, err := generateAPIKey()
	if err != nil {
		log.Printf("❌ Failed to generate API key: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "generation_error",
			Message: "Failed to generate API key",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	rateLimit := req.RateLimit
	if rateLimit <= 0 {
		rateLimit = h.DefaultRateLimit
	}

	// Create the key record with the HASH (never store the raw key)
	key := &models.APIKey{
		KeyHash:   middleware.HashAPIKey(rawKey),
		KeyPrefix: rawKey[:8] + "...", // Show first 8 chars for identification
		Name:      req.Name,
		Active:    true,
		RateLimit: rateLimit,
		UserID:    userID,
	}

	if err := h.Store.CreateAPIKey(c.Request.Context(), key); err != nil {
		log.Printf("❌ Failed to create API key: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create API key",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	// Return the key WITH the raw value — this is the ONLY time it's shown
	c.JSON(http.StatusCreated, models.CreateAPIKeyResponse{
		APIKey: *key,
		RawKey: rawKey,
	})
}

// ListAPIKeys returns all API keys (without the raw key values).
// GET /api/v1/keys
func (h *Handler) ListAPIKeys(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	keys, err := h.Store.ListAPIKeys(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list API keys",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if keys == nil {
		keys = []models.APIKey{}
	}

	c.JSON(http.StatusOK, keys)
}

// RevokeAPIKey deactivates an API key.
// DELETE /api/v1/keys/:id
func (h *Handler) RevokeAPIKey(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	if err := h.Store.RevokeAPIKey(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "API key not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// requireAdmin checks X-Admin-Key when an admin key is configured and writes
// the error response if it is missing or wrong.
func (h *Handler) requireAdmin(c *gin.Context) bool {
	if h.AdminAPIKey == "" {
		return true
	}

	providedKey := c.GetHeader("X-Admin-Key")
	if providedKey == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "X-Admin-Key header is required to manage API keys",
			Code:    http.StatusUnauthorized,
		})
		return false
	}
	if subtle.ConstantTimeCompare([]byte(providedKey), []byte(h.AdminAPIKey)) != 1 {
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: "Invalid admin key",
			Code:    http.StatusForbidden,
		})
		return false
	}
	return true
}

// generateAPIKey creates a cryptographically secure random API key.
// Format: "c2p_" prefix + 32 random hex characters = 36 chars total.
func generateAPIKey() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}
