// auth.go serves accounts for people who convert with a JWT instead of an
// API key: sign-up, sign-in, token refresh and an account summary.
package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

var errBadCredentials = models.ErrorResponse{
	Error:   "invalid_credentials",
	Message: "Invalid email or password",
	Code:    http.StatusUnauthorized,
}

// Register creates an account and signs it in.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "A valid email and a password of at least 8 characters are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	email := normalizeEmail(req.Email)
	if existing, _ := h.Store.GetUserByEmail(c.Request.Context(), email); existing != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "email_taken",
			Message: "An account with this email already exists",
			Code:    http.StatusConflict,
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("❌ Failed to hash password: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to create account",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
	}
	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		log.Printf("❌ Failed to create user: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create account",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	log.Printf("👤 Account created: %s", user.ID)
	h.respondWithToken(c, http.StatusCreated, user)
}

// Login checks a password and returns a fresh token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Email and password are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil {
		c.JSON(http.StatusUnauthorized, errBadCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, errBadCredentials)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// GetMe summarizes the signed-in account: who it is, what it has converted
// and the limits its conversions run under.
// GET /api/v1/auth/me
func (h *Handler) GetMe(c *gin.Context) {
	user, ok := signedInUser(c)
	if !ok {
		return
	}

	stats, err := h.Store.ConversionStats(c.Request.Context(), models.ConversionFilter{UserID: &user.ID})
	if err != nil {
		log.Printf("❌ Failed to count conversions for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to load conversion history",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, models.AccountResponse{
		User:           *user,
		Conversions:    *stats,
		RateLimit:      h.DefaultRateLimit,
		MaxUploadBytes: h.MaxUploadBytes,
	})
}

// RefreshToken trades a still-valid token for one with a new expiry.
// POST /api/v1/auth/refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	user, ok := signedInUser(c)
	if !ok {
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := middleware.GenerateJWT(user, h.JWTSecret)
	if err != nil {
		log.Printf("❌ Failed to sign token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "token_error",
			Message: "Failed to generate token",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(status, models.AuthResponse{Token: token, User: *user})
}

// signedInUser returns the JWT user, or writes a 401 and reports false.
func signedInUser(c *gin.Context) (*models.User, bool) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Not authenticated",
			Code:    http.StatusUnauthorized,
		})
		return nil, false
	}
	return user, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
