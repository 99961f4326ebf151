// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// Unlike Ruby controllers, Go handlers are plain functions — no class inheritance.
// We group related handlers into a struct (Handler) that holds shared dependencies.
package handlers

import (
	"context"
	"time"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// Store is the persistence the handlers use. *database.DB implements it.
type Store interface {
	HealthCheck(ctx context.Context) error

	CreateConversion(ctx context.Context, c *models.Conversion) error
	GetConversion(ctx context.Context, id string) (*models.Conversion, error)
	ListConversions(ctx context.Context, f models.ConversionFilter) ([]models.Conversion, error)
	ConversionStats(ctx context.Context, f models.ConversionFilter) (*models.ConversionStats, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	ListWebhooksByAPIKey(ctx context.Context, apiKeyID string) ([]models.Webhook, error)
	UpdateWebhookActive(ctx context.Context, id string, active bool) error
	DeleteWebhook(ctx context.Context, id string) error
	ListWebhookDeliveries(ctx context.Context, webhookID string, limit int) ([]models.WebhookDelivery, error)
	ListAllDeliveriesByAPIKey(ctx context.Context, apiKeyID string, limit int) ([]models.WebhookDelivery, error)
}

// Converter runs conversions. *worker.Pool implements it.
type Converter interface {
	Convert(ctx context.Context, id string, input []byte) (*bridge.Result, error)
	Ready() bool
	AwaitReady(ctx context.Context) error
	WorkerCount() int
	QueueSize() int
}

// Notifier publishes conversion events. *webhook.Service implements it.
type Notifier interface {
	NotifyEvent(ctx context.Context, apiKeyID, event string, data any)
}

// Options are the tunables handlers read from config.
type Options struct {
	Version           string
	JWTSecret         string
	AdminAPIKey       string
	Owner             middleware.Owner
	DefaultRateLimit  int
	MaxUploadBytes    int64
	ModuleWaitTimeout time.Duration
	ConvertTimeout    time.Duration
	OutputFilename    string
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// This makes testing easy — just create a Handler with mock dependencies.
type Handler struct {
	Store    Store
	Pool     Converter
	Webhooks Notifier
	Options
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(store Store, pool Converter, webhooks Notifier, opts Options) *Handler {
	if opts.OutputFilename == "" {
		opts.OutputFilename = "output.pdf"
	}
	if opts.DefaultRateLimit <= 0 {
		opts.DefaultRateLimit = 100
	}
	return &Handler{
		Store:    store,
		Pool:     pool,
		Webhooks: webhooks,
		Options:  opts,
	}
}
