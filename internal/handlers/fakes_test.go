package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
)

const (
	testJWTSecret = "handler-test-secret"
	testRawKey    = "c2p_00112233445566778899aabbccddeeff"
	ownerRawKey   = "c2p_ffeeddccbbaa99887766554433221100"
)

var (
	testKey  = &models.APIKey{ID: "key-1", KeyPrefix: "c2p_0011...", Active: true, RateLimit: 100}
	ownerKey = &models.APIKey{ID: "owner-key", KeyPrefix: "c2p_ffee...", Active: true}
	testUser = &models.User{ID: "user-1", Email: "reader@example.com", Name: "Reader"}
)

// fakeStore keeps records in memory. Methods a test does not need fall
// through to the nil embedded Store and panic.
type fakeStore struct {
	Store

	mu          sync.Mutex
	conversions []models.Conversion
	createErr   error
	lastFilter  models.ConversionFilter
	apiKeys     []models.APIKey
	webhooks    map[string]*models.Webhook
	users       []*models.User
	healthErr   error
}

func (f *fakeStore) HealthCheck(context.Context) error { return f.healthErr }

func (f *fakeStore) CreateConversion(_ context.Context, c *models.Conversion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	c.CreatedAt = time.Now()
	f.conversions = append(f.conversions, *c)
	return nil
}

func (f *fakeStore) GetConversion(_ context.Context, id string) (*models.Conversion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversions {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, errors.New("conversion not found")
}

func (f *fakeStore) ListConversions(_ context.Context, filter models.ConversionFilter) ([]models.Conversion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.conversions, nil
}

func (f *fakeStore) ConversionStats(_ context.Context, filter models.ConversionFilter) (*models.ConversionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var stats models.ConversionStats
	for _, c := range f.conversions {
		if filter.UserID != nil && (c.UserID == nil || *c.UserID != *filter.UserID) {
			continue
		}
		stats.Total++
		if c.Status == models.StatusCompleted {
			stats.Completed++
			stats.Pages += int64(c.PageCount)
			stats.OutputBytes += c.OutputSize
		} else {
			stats.Failed++
		}
	}
	return &stats, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (f *fakeStore) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = fmt.Sprintf("user-%d", len(f.users)+100)
	u.CreatedAt = time.Now()
	f.users = append(f.users, u)
	return nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	key.ID = fmt.Sprintf("key-%d", len(f.apiKeys)+100)
	key.CreatedAt = time.Now()
	f.apiKeys = append(f.apiKeys, *key)
	return nil
}

func (f *fakeStore) ListAPIKeys(context.Context) ([]models.APIKey, error) {
	return f.apiKeys, nil
}

func (f *fakeStore) GetWebhook(_ context.Context, id string) (*models.Webhook, error) {
	if wh, ok := f.webhooks[id]; ok {
		return wh, nil
	}
	return nil, errors.New("webhook not found")
}

func (f *fakeStore) UpdateWebhookActive(_ context.Context, id string, active bool) error {
	f.webhooks[id].Active = active
	return nil
}

func (f *fakeStore) DeleteWebhook(_ context.Context, id string) error {
	delete(f.webhooks, id)
	return nil
}

func (f *fakeStore) records() []models.Conversion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Conversion(nil), f.conversions...)
}

// fakeAuth resolves the two test keys and the test user.
type fakeAuth struct{}

func (fakeAuth) GetAPIKeyByHash(_ context.Context, hash string) (*models.APIKey, error) {
	switch hash {
	case middleware.HashAPIKey(testRawKey):
		return testKey, nil
	case middleware.HashAPIKey(ownerRawKey):
		return ownerKey, nil
	}
	return nil, errors.New("invalid API key")
}

func (fakeAuth) UpdateAPIKeyLastUsed(context.Context, string) error { return nil }

func (fakeAuth) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if id == testUser.ID {
		return testUser, nil
	}
	return nil, errors.New("user not found")
}

// fakePool stands in for the worker pool.
type fakePool struct {
	mu        sync.Mutex
	ready     bool
	awaitErr  error
	result    *bridge.Result
	err       error
	calls     int
	lastInput []byte
}

func (p *fakePool) Convert(_ context.Context, _ string, input []byte) (*bridge.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastInput = input
	return p.result, p.err
}

func (p *fakePool) Ready() bool { return p.ready }

func (p *fakePool) AwaitReady(context.Context) error {
	if p.awaitErr == nil {
		p.ready = true
	}
	return p.awaitErr
}

func (p *fakePool) WorkerCount() int { return 2 }
func (p *fakePool) QueueSize() int   { return 0 }

// fakeNotifier records published events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

type sentEvent struct {
	apiKeyID string
	event    string
	data     any
}

func (n *fakeNotifier) NotifyEvent(_ context.Context, apiKeyID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{apiKeyID, event, data})
}

type testEnv struct {
	h        *Handler
	store    *fakeStore
	pool     *fakePool
	notifier *fakeNotifier
	router   *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:    &fakeStore{webhooks: map[string]*models.Webhook{}},
		pool:     &fakePool{ready: true},
		notifier: &fakeNotifier{},
	}
	env.h = NewHandler(env.store, env.pool, env.notifier, Options{
		Version:           "test",
		JWTSecret:         testJWTSecret,
		Owner:             middleware.Owner{KeyID: ownerKey.ID},
		MaxUploadBytes:    1 << 20,
		ModuleWaitTimeout: time.Second,
		ConvertTimeout:    5 * time.Second,
		OutputFilename:    "output.pdf",
	})

	r := gin.New()
	r.GET("/api/v1/health", env.h.HealthCheck)
	r.GET("/api/v1/ready", env.h.Ready)
	r.POST("/api/v1/keys", env.h.CreateAPIKey)
	r.GET("/api/v1/keys", env.h.ListAPIKeys)

	protected := r.Group("/api/v1", middleware.DualAuth(fakeAuth{}, testJWTSecret))
	protected.POST("/convert", env.h.Convert)
	protected.GET("/conversions", env.h.ListConversions)
	protected.GET("/conversions/:id", env.h.GetConversion)

	r.POST("/api/v1/auth/register", env.h.Register)
	r.POST("/api/v1/auth/login", env.h.Login)
	account := r.Group("/api/v1/auth", middleware.JWTAuth(fakeAuth{}, testJWTSecret))
	account.GET("/me", env.h.GetMe)
	account.POST("/refresh", env.h.RefreshToken)

	webhooks := r.Group("/api/v1/webhooks", middleware.APIKeyAuth(fakeAuth{}))
	webhooks.PATCH("/:id", env.h.UpdateWebhook)
	webhooks.DELETE("/:id", env.h.DeleteWebhook)

	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// uploadRequest builds a multipart convert request. An empty filename sends
// no file part at all.
func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-API-Key", testRawKey)
	return req
}

// testPDF builds a small, valid PDF with blank pages.
func testPDF(pages int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
