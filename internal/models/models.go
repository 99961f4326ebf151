// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// Unlike Ruby's ActiveRecord or JavaScript's Mongoose, Go models are just
// data containers — no ORM magic. The database package handles persistence.
//
// JSON tags (e.g., `json:"id"`) control how struct fields are serialized
// to/from JSON. The `db` tags work with sqlx for database column mapping.
package models

import (
	"time"
)

// ConversionStatus represents the outcome of a conversion.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
// This is a common pattern — define a type alias and named constants.
type ConversionStatus string

const (
	StatusCompleted ConversionStatus = "completed"
	StatusFailed    ConversionStatus = "failed"
)

// Conversion is the metadata of one CAJ -> PDF conversion. Document bytes are
// never stored; only sizes and counts.
type Conversion struct {
	ID               string           `json:"id" db:"id"`
	OriginalName     string           `json:"original_name" db:"original_name"`
	InputSize        int64            `json:"input_size" db:"input_size"`               // Uploaded CAJ bytes
	IntermediateSize int64            `json:"intermediate_size" db:"intermediate_size"` // PDF bytes before cleanup
	OutputSize       int64            `json:"output_size" db:"output_size"`             // Final PDF bytes
	PageCount        int              `json:"page_count" db:"page_count"`
	OutlineEntries   int              `json:"outline_entries" db:"outline_entries"`
	Status           ConversionStatus `json:"status" db:"status"`
	ErrorKind        string           `json:"error_kind,omitempty" db:"error_kind"` // decode_error, transform_failure, ...
	ErrorMessage     string           `json:"error_message,omitempty" db:"error_message"`
	DurationMS       int64            `json:"duration_ms" db:"duration_ms"`
	APIKeyID         *string          `json:"api_key_id,omitempty" db:"api_key_id"` // Pointer = nullable
	UserID           *string          `json:"user_id,omitempty" db:"user_id"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// ConversionFilter selects whose conversions to list. Nil owner fields match
// every record.
type ConversionFilter struct {
	APIKeyID *string
	UserID   *string
	Status   ConversionStatus
	Limit    int
}

// APIKey represents an API key for authentication.
// Note: We store the HASH of the key, never the raw key itself.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	KeyHash    string     `json:"-" db:"key_hash"`            // "-" means never serialize to JSON
	KeyPrefix  string     `json:"key_prefix" db:"key_prefix"` // First 8 chars for identification
	Name       string     `json:"name" db:"name"`
	Active     bool       `json:"active" db:"active"`
	RateLimit  int        `json:"rate_limit" db:"rate_limit"` // Requests per hour
	UserID     *string    `json:"user_id,omitempty" db:"user_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"` // Pointer = nullable
}

// User is an account that authenticates with a JWT instead of an API key.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Webhook is a registered callback URL for conversion events.
type Webhook struct {
	ID        string    `json:"id" db:"id"`
	APIKeyID  string    `json:"api_key_id" db:"api_key_id"`
	URL       string    `json:"url" db:"url"`
	Events    []string  `json:"events" db:"events"`
	Secret    string    `json:"-" db:"secret"` // HMAC secret, shown once at creation
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WebhookDelivery records one attempt sequence to deliver an event.
type WebhookDelivery struct {
	ID           string     `json:"id" db:"id"`
	WebhookID    string     `json:"webhook_id" db:"webhook_id"`
	Event        string     `json:"event" db:"event"`
	Payload      string     `json:"payload" db:"payload"`
	Status       string     `json:"status" db:"status"` // "pending", "success", "failed"
	Attempts     int        `json:"attempts" db:"attempts"`
	LastError    string     `json:"last_error,omitempty" db:"last_error"`
	ResponseCode int        `json:"response_code,omitempty" db:"response_code"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}

// Webhook event names.
const (
	EventConversionCompleted = "conversion.completed"
	EventConversionFailed    = "conversion.failed"
)

// ValidWebhookEvents is the set of events a webhook may subscribe to.
var ValidWebhookEvents = map[string]bool{
	EventConversionCompleted: true,
	EventConversionFailed:    true,
}

// WebhookPayload is the JSON body POSTed to webhook URLs.
type WebhookPayload struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs database models.
// This keeps your API contract clean and independent of your database schema.

// CreateAPIKeyRequest is the JSON body for POST /api/v1/keys.
type CreateAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	RateLimit int    `json:"rate_limit,omitempty"` // 0 = use default
}

// CreateAPIKeyResponse includes the raw key — shown only once at creation time.
type CreateAPIKeyResponse struct {
	APIKey
	RawKey string `json:"raw_key"` // The actual API key — save it! Only shown once.
}

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"max=100"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned on successful register/login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ConversionStats totals a caller's conversion history.
type ConversionStats struct {
	Total       int   `json:"total" db:"total"`
	Completed   int   `json:"completed" db:"completed"`
	Failed      int   `json:"failed" db:"failed"`
	Pages       int64 `json:"pages" db:"pages"`
	OutputBytes int64 `json:"output_bytes" db:"output_bytes"`
}

// AccountResponse is returned by GET /api/v1/auth/me.
type AccountResponse struct {
	User           User            `json:"user"`
	Conversions    ConversionStats `json:"conversions"`
	RateLimit      int             `json:"rate_limit"`       // Requests per hour
	MaxUploadBytes int64           `json:"max_upload_bytes"` // Largest accepted CAJ upload
}

// CreateWebhookRequest is the JSON body for POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}

// UpdateWebhookRequest is the JSON body for PATCH /api/v1/webhooks/:id.
type UpdateWebhookRequest struct {
	Active *bool `json:"active"`
}

// ConversionEvent is the webhook data for conversion.completed and
// conversion.failed.
type ConversionEvent struct {
	Conversion Conversion `json:"conversion"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Database     string `json:"database"`
	ModulesReady bool   `json:"modules_ready"`
	Workers      int    `json:"workers"`
	Queued       int    `json:"queued"`
}
