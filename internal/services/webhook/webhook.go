// Package webhook notifies API clients about finished conversions.
//
// Every delivery is signed with HMAC-SHA256 over the raw JSON body and sent in
// the X-Webhook-Signature header, so receivers can verify it came from us.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

// Store is the persistence the service needs. *database.DB implements it.
type Store interface {
	GetActiveWebhooksForEvent(ctx context.Context, apiKeyID, event string) ([]models.Webhook, error)
	CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
	UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
}

// defaultRetryDelays is the wait before each attempt: immediately, then 1s,
// 5s and 30s.
var defaultRetryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Service handles webhook notification delivery.
type Service struct {
	store       Store
	client      *http.Client
	retryDelays []time.Duration

	shutdownCh   chan struct{} // Signals pending deliveries to stop
	shutdownOnce sync.Once
	inflight     sync.WaitGroup
}

// New creates a new webhook service.
func New(store Store) *Service {
	return &Service{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryDelays: defaultRetryDelays,
		shutdownCh:  make(chan struct{}),
	}
}

// Shutdown signals all pending webhook deliveries to stop and waits for
// them to record their final state.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.inflight.Wait()
}

// GenerateSecret creates a random HMAC secret for a webhook.
func GenerateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// NotifyEvent sends an event to every webhook the API key registered for it.
// Delivery happens asynchronously with retry logic; an empty apiKeyID
// (JWT-only callers) has no webhooks.
func (s *Service) NotifyEvent(ctx context.Context, apiKeyID, event string, data any) {
	if apiKeyID == "" {
		return
	}

	webhooks, err := s.store.GetActiveWebhooksForEvent(ctx, apiKeyID, event)
	if err != nil {
		log.Printf("⚠️  Failed to get webhooks for event %s: %v", event, err)
		return
	}

	if len(webhooks) == 0 {
		return
	}

	payload := models.WebhookPayload{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, wh := range webhooks {
		// Fire and forget — each delivery runs in its own goroutine
		s.inflight.Add(1)
		go func(wh models.Webhook) {
			defer s.inflight.Done()
			s.deliverWithRetry(wh, event, payloadJSON)
		}(wh)
	}
}

// deliverWithRetry attempts to deliver a webhook, backing off between
// attempts. Delivery respects shutdown signals for graceful termination.
func (s *Service) deliverWithRetry(wh models.Webhook, event string, payloadJSON []byte) {
	// The whole retry sequence (~36s of waiting plus request time) must fit.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	delivery := &models.WebhookDelivery{
		WebhookID: wh.ID,
		Event:     event,
		Payload:   string(payloadJSON),
		Status:    "pending",
	}

	if err := s.store.CreateWebhookDelivery(ctx, delivery); err != nil {
		log.Printf("⚠️  Failed to create webhook delivery record: %v", err)
		return
	}

	for attempt, delay := range s.retryDelays {
		if attempt > 0 {
			select {
			case <-s.shutdownCh:
				log.Printf("⚠️  Webhook delivery aborted due to shutdown: %s → %s", event, wh.URL)
				s.finish(ctx, delivery, "failed", "shutdown during delivery")
				return
			case <-ctx.Done():
				log.Printf("⚠️  Webhook delivery timed out: %s → %s", event, wh.URL)
				s.finish(ctx, delivery, "failed", "delivery timeout")
				return
			case <-time.After(delay):
			}
		}

		delivery.Attempts = attempt + 1
		statusCode, err := s.deliver(ctx, wh, event, payloadJSON)
		delivery.ResponseCode = statusCode

		if err == nil && statusCode >= 200 && statusCode < 300 {
			now := time.Now()
			delivery.DeliveredAt = &now
			s.finish(ctx, delivery, "success", "")
			log.Printf("✅ Webhook delivered: %s → %s (attempt %d)", event, wh.URL, attempt+1)
			return
		}

		lastError := fmt.Sprintf("HTTP %d", statusCode)
		if err != nil {
			lastError = err.Error()
		}
		s.finish(ctx, delivery, "pending", lastError)

		log.Printf("⚠️  Webhook delivery failed (attempt %d/%d): %s → %s: %s",
			attempt+1, len(s.retryDelays), event, wh.URL, lastError)
	}

	s.finish(ctx, delivery, "failed", delivery.LastError)
	log.Printf("❌ Webhook delivery failed permanently: %s → %s", event, wh.URL)
}

// finish records the delivery state after an attempt.
func (s *Service) finish(ctx context.Context, d *models.WebhookDelivery, status, lastError string) {
	d.Status = status
	d.LastError = lastError
	if err := s.store.UpdateWebhookDelivery(context.WithoutCancel(ctx), d); err != nil {
		log.Printf("⚠️  Failed to update delivery record: %v", err)
	}
}

// deliver sends a single webhook HTTP request with context support.
func (s *Service) deliver(ctx context.Context, wh models.Webhook, event string, payloadJSON []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Caj2PdfAPI-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)

	if wh.Secret != "" {
		req.Header.Set("X-Webhook-Signature", SignPayload(payloadJSON, wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
