package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

func TestWebhookOwnership(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		webhookID  string
		wantStatus int
		wantActive bool
		wantExists bool
	}{
		{"deactivate own", http.MethodPatch, `{"active":false}`, "wh-mine", http.StatusOK, false, true},
		{"missing active field", http.MethodPatch, `{}`, "wh-mine", http.StatusBadRequest, true, true},
		{"deactivate someone else's", http.MethodPatch, `{"active":false}`, "wh-theirs", http.StatusNotFound, true, true},
		{"delete own", http.MethodDelete, "", "wh-mine", http.StatusOK, true, false},
		{"delete someone else's", http.MethodDelete, "", "wh-theirs", http.StatusNotFound, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.webhooks = map[string]*models.Webhook{
				"wh-mine":   {ID: "wh-mine", APIKeyID: testKey.ID, Active: true},
				"wh-theirs": {ID: "wh-theirs", APIKeyID: "key-2", Active: true},
			}

			req := httptest.NewRequest(tt.method, "/api/v1/webhooks/"+tt.webhookID, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-API-Key", testRawKey)

			w := env.do(req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			wh, exists := env.store.webhooks[tt.webhookID]
			if exists != tt.wantExists {
				t.Fatalf("exists = %v, want %v", exists, tt.wantExists)
			}
			if exists && wh.Active != tt.wantActive {
				t.Errorf("Active = %v, want %v", wh.Active, tt.wantActive)
			}
		})
	}
}
