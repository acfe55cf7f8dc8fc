package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/pawprint/config"
	"github.com/d60-Lab/pawprint/internal/api/handler"
	"github.com/d60-Lab/pawprint/internal/api/middleware"
	"github.com/d60-Lab/pawprint/internal/repository/memory"
	"github.com/d60-Lab/pawprint/internal/service"
)

const webhookSecret = "hook-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t      *testing.T
	router *gin.Engine
	cfg    *config.Config
}

func newClient(t *testing.T) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "jwt-secret", Issuer: "pawprint"},
		Events:  config.EventsConfig{WebhookSecret: webhookSecret},
		Tracing: config.TracingConfig{ServiceName: "pawprint-test"},
	}
	store := memory.New()
	h := handler.New(service.NewGate(store), service.NewSubscriptionService(store))
	r, err := NewRouter(cfg, h, nil)
	require.NoError(t, err)
	return &client{t: t, router: r, cfg: cfg}
}

func (c *client) do(method, path, userID string, body any, headers ...string) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := middleware.IssueToken(c.cfg.JWT.Secret, c.cfg.JWT.Issuer, userID, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (c *client) event(userID, typ, tier string) int {
	code, _ := c.do(http.MethodPost, "/api/v1/webhooks/events", "",
		gin.H{"user_id": userID, "type": typ, "tier": tier},
		middleware.WebhookSecretHeader, webhookSecret)
	return code
}

func (c *client) register(id, name string) {
	code, env := c.do(http.MethodPost, "/api/v1/users", id, gin.H{"username": name, "email": name + "@example.com"})
	require.Equal(c.t, http.StatusCreated, code, env.Message)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresToken(t *testing.T) {
	c := newClient(t)
	code, _ := c.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSignupToFirstPost(t *testing.T) {
	c := newClient(t)
	c.register("u1", "rex")

	code, env := c.do(http.MethodPost, "/api/v1/posts", "u1", gin.H{"content": "first walk"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", env.Reason)
	assert.Equal(t, "verify your email to continue", env.Message)

	assert.Equal(t, http.StatusOK, c.event("u1", "email.verified", ""))
	code, env = c.do(http.MethodPost, "/api/v1/posts", "u1", gin.H{"content": "first walk"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PREMIUM_REQUIRED", env.Reason)

	assert.Equal(t, http.StatusOK, c.event("u1", "subscription.activated", "free"))
	code, env = c.do(http.MethodPost, "/api/v1/posts", "u1", gin.H{"content": "first walk", "tags": []string{"#Recall"}})
	require.Equal(t, http.StatusCreated, code, env.Message)

	var post struct {
		ID   string   `json:"id"`
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))
	assert.Equal(t, []string{"recall"}, post.Tags)

	code, env = c.do(http.MethodGet, "/api/v1/posts/"+post.ID, "u1", nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		Author struct {
			Username string `json:"username"`
			State    string `json:"state"`
		} `json:"author"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "rex", view.Author.Username)
	assert.Equal(t, "present", view.Author.State)
}

func TestActivityLimitOverHTTP(t *testing.T) {
	c := newClient(t)
	c.register("u1", "rex")
	require.Equal(t, http.StatusOK, c.event("u1", "email.verified", ""))
	require.Equal(t, http.StatusOK, c.event("u1", "subscription.activated", "free"))

	for i := 0; i < 5; i++ {
		code, env := c.do(http.MethodPost, "/api/v1/activities", "u1", gin.H{"title": "Sit"})
		require.Equal(t, http.StatusCreated, code, env.Message)
	}
	code, env := c.do(http.MethodPost, "/api/v1/activities", "u1", gin.H{"title": "Down"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "LIMIT_REACHED", env.Reason)

	code, env = c.do(http.MethodGet, "/api/v1/me/check?action=create_activity", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	var d struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, "LIMIT_REACHED", d.Reason)

	require.Equal(t, http.StatusOK, c.event("u1", "subscription.activated", "premium"))
	code, _ = c.do(http.MethodPost, "/api/v1/activities", "u1", gin.H{"title": "Down"})
	assert.Equal(t, http.StatusCreated, code)
}

func TestIdempotencyKeyReplaysCreate(t *testing.T) {
	c := newClient(t)
	c.register("u1", "rex")
	require.Equal(t, http.StatusOK, c.event("u1", "email.verified", ""))
	require.Equal(t, http.StatusOK, c.event("u1", "subscription.activated", "pro"))

	_, first := c.do(http.MethodPost, "/api/v1/activities", "u1", gin.H{"title": "Sit"}, handler.IdempotencyHeader, "k1")
	_, second := c.do(http.MethodPost, "/api/v1/activities", "u1", gin.H{"title": "Sit"}, handler.IdempotencyHeader, "k1")
	assert.JSONEq(t, string(first.Data), string(second.Data))

	_, env := c.do(http.MethodGet, "/api/v1/me/stats", "u1", nil)
	var stats struct {
		ActivitiesCreated int `json:"activities_created"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.ActivitiesCreated)
}

func TestValidationAndWebhookErrors(t *testing.T) {
	c := newClient(t)
	c.register("u1", "rex")

	code, _ := c.do(http.MethodPost, "/api/v1/posts", "u1", gin.H{"content": "x", "tags": []string{"no spaces allowed"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do(http.MethodPost, "/api/v1/webhooks/events", "", gin.H{"user_id": "u1", "type": "email.verified"})
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Equal(t, http.StatusBadRequest, c.event("u1", "subscription.activated", "premium"))
	assert.Equal(t, http.StatusNotFound, c.event("ghost", "email.verified", ""))

	code, _ = c.do(http.MethodPost, "/api/v1/users", "u1", gin.H{"username": "rex2", "email": "rex@example.com"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestFollowAndLikeRoutes(t *testing.T) {
	c := newClient(t)
	c.register("u1", "rex")
	c.register("u2", "bella")
	require.Equal(t, http.StatusOK, c.event("u1", "email.verified", ""))
	require.Equal(t, http.StatusOK, c.event("u1", "subscription.activated", "free"))

	code, _ := c.do(http.MethodPost, "/api/v1/relations/follow", "u2", gin.H{"to_user_id": "u1"})
	require.Equal(t, http.StatusOK, code)
	code, env := c.do(http.MethodGet, "/api/v1/relations/u1/followers", "u1", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		List []string `json:"list"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, []string{"u2"}, page.List)

	_, env = c.do(http.MethodPost, "/api/v1/posts", "u1", gin.H{"content": "hi"})
	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	code, env = c.do(http.MethodPut, "/api/v1/likes/post/"+post.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", env.Reason)

	code, _ = c.do(http.MethodPut, "/api/v1/likes/post/"+post.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodPut, "/api/v1/likes/video/"+post.ID, "u1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = c.do(http.MethodDelete, "/api/v1/posts/"+post.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, code)
}
