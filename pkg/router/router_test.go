package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/backend/internal/models"
	"mindcare/backend/internal/notify"
	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/database"
	"mindcare/backend/pkg/di"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (g *fakeGenerator) Generate(context.Context, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reply, g.err
}

func (g *fakeGenerator) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, notify.EmailJob) error { return nil }

type testServer struct {
	router    *Router
	container *di.Container
	generator *fakeGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.JWT.Secret = "router-test-secret"
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.AI.MaxAttempts = 1
	cfg.AI.RetryBackoff = time.Millisecond

	gen := &fakeGenerator{reply: "I hear you."}
	c, err := di.New(cfg, db, di.Deps{
		Generator: gen,
		Notifier:  discardNotifier{},
		Logger:    logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	r := New(c)
	r.SetupRoutes()
	return &testServer{router: r, container: c, generator: gen}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

// userToken creates a user with role and returns a session token for it
func (s *testServer) userToken(t *testing.T, email string, role jwt.Role) (uint, string) {
	t.Helper()
	u := models.User{Name: "Test", Email: email, Password: "password123", Role: string(role)}
	require.NoError(t, s.container.DB.Create(&u).Error)
	token, err := s.container.JWTService.GenerateToken(u.ID, u.Email, role)
	require.NoError(t, err)
	return u.ID, token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.container.Health.RunChecks(context.Background())

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
	}

	sqlDB, err := s.container.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	s.container.Health.RunChecks(context.Background())

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/v1/banners", "", nil)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mindcare_http_requests_total{method="GET",route="/api/v1/banners",status="200"} 1`)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	signup := map[string]string{"name": "Ana", "email": "ana@example.com", "password": "password123"}
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	auth := decode[models.AuthResponse](t, w)
	assert.Equal(t, "USER", auth.User.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", signup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "USER_EXISTS", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[models.AuthResponse](t, w).Token

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", decode[models.UserResponse](t, w).Email)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TOKEN_INVALID", errorCode(t, w))
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"name": "x", "email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	assert.Contains(t, w.Body.String(), `"field":"email"`)
	assert.Contains(t, w.Body.String(), `"field":"password"`)
}

func TestChatOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, token := s.userToken(t, "chat@example.com", jwt.RoleUser)
	_, otherToken := s.userToken(t, "other@example.com", jwt.RoleUser)

	w := s.do(t, http.MethodPost, "/api/v1/chat/sessions", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.ChatSession](t, w)

	w = s.do(t, http.MethodPost, "/api/v1/chat/sessions/"+session.ID+"/messages", token, map[string]string{"content": "I feel anxious today"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	exchange := decode[models.ChatExchange](t, w)
	assert.Equal(t, "I feel anxious today", exchange.UserMessage.Content)
	assert.Equal(t, "I hear you.", exchange.AssistantMessage.Content)

	s.generator.fail(errors.New("upstream down"))
	w = s.do(t, http.MethodPost, "/api/v1/chat/sessions/"+session.ID+"/messages", token, map[string]string{"content": "are you there?"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "AI_UNAVAILABLE", errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "upstream down")

	w = s.do(t, http.MethodGet, "/api/v1/chat/sessions/"+session.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[struct {
		Session  models.ChatSession `json:"session"`
		Messages []models.Message   `json:"messages"`
	}](t, w)
	require.Len(t, detail.Messages, 3)
	assert.Equal(t, "are you there?", detail.Messages[2].Content)
	assert.True(t, detail.Messages[2].IsFromUser)
	assert.Equal(t, "I feel anxious today", detail.Session.Title)

	w = s.do(t, http.MethodGet, "/api/v1/chat/sessions/"+session.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", errorCode(t, w))

	w = s.do(t, http.MethodDelete, "/api/v1/chat/sessions/"+session.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/chat/sessions", token, nil)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.userToken(t, "user@example.com", jwt.RoleUser)
	_, adminToken := s.userToken(t, "admin@example.com", jwt.RoleAdmin)

	for _, path := range []string{"/api/v1/admin/analytics/keywords", "/api/v1/admin/events", "/api/v1/admin/prompts"} {
		w := s.do(t, http.MethodGet, path, userToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)

		w = s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = s.do(t, http.MethodGet, path, adminToken, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestKeywordAnalyticsEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.userToken(t, "talker@example.com", jwt.RoleUser)
	_, adminToken := s.userToken(t, "admin@example.com", jwt.RoleAdmin)

	w := s.do(t, http.MethodPost, "/api/v1/chat/sessions", userToken, nil)
	session := decode[models.ChatSession](t, w)
	for _, msg := range []string{"I feel so much anxiety today", "anxiety is hard"} {
		w = s.do(t, http.MethodPost, "/api/v1/chat/sessions/"+session.ID+"/messages", userToken, map[string]string{"content": msg})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/v1/admin/analytics/keywords?days=7&limit=2", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Keywords []struct {
			Keyword    string  `json:"keyword"`
			Count      int     `json:"count"`
			Percentage float64 `json:"percentage"`
			Trend      string  `json:"trend"`
		} `json:"keywords"`
		Summary map[string]float64 `json:"summary"`
		Period  struct {
			Days int `json:"days"`
		} `json:"period"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Keywords, 2)
	assert.Equal(t, "anxiety", report.Keywords[0].Keyword)
	assert.Equal(t, 2, report.Keywords[0].Count)
	assert.Equal(t, 40.0, report.Keywords[0].Percentage)
	assert.Equal(t, "stable", report.Keywords[0].Trend)
	assert.Equal(t, 2.0, report.Summary["total_messages"])
	assert.Equal(t, 4.0, report.Summary["unique_keywords"])
	assert.Equal(t, 2.5, report.Summary["avg_keywords_per_message"])
	assert.Equal(t, 7, report.Period.Days)

	for _, query := range []string{"limit=0", "limit=-3", "limit=abc", "limit=201", "days=0", "days=366", "days=1.5"} {
		w = s.do(t, http.MethodGet, "/api/v1/admin/analytics/keywords?"+query, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.Equal(t, "INVALID_PARAMETER", errorCode(t, w), query)
	}

	w = s.do(t, http.MethodGet, "/api/v1/admin/analytics/overview?days=7", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userMessages":2`)
}

func TestBannerAdmin(t *testing.T) {
	s := newTestServer(t)
	_, adminToken := s.userToken(t, "admin@example.com", jwt.RoleAdmin)

	var ids []uint
	for _, title := range []string{"first", "second"} {
		w := s.do(t, http.MethodPost, "/api/v1/admin/banners", adminToken, map[string]string{"title": title, "imageUrl": "https://example.com/b.png"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ids = append(ids, decode[models.Banner](t, w).ID)
	}

	w := s.do(t, http.MethodPut, "/api/v1/admin/banners/order", adminToken, map[string][]uint{"ids": {ids[0]}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ORDER", errorCode(t, w))

	w = s.do(t, http.MethodPut, "/api/v1/admin/banners/order", adminToken, map[string][]uint{"ids": {ids[1], ids[0]}})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/banners", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	banners := decode[struct {
		Banners []models.Banner `json:"banners"`
	}](t, w).Banners
	require.Len(t, banners, 2)
	assert.Equal(t, "second", banners[0].Title)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/banners/999", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BANNER_NOT_FOUND", errorCode(t, w))

	w = s.do(t, http.MethodGet, "/api/v1/admin/banners/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatWebSocket(t *testing.T) {
	s := newTestServer(t)
	_, token := s.userToken(t, "ws@example.com", jwt.RoleUser)
	_, otherToken := s.userToken(t, "intruder@example.com", jwt.RoleUser)

	w := s.do(t, http.MethodPost, "/api/v1/chat/sessions", token, nil)
	session := decode[models.ChatSession](t, w)

	srv := httptest.NewServer(s.router.Engine)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/ws?sessionId=" + session.ID

	_, resp, err := websocket.DefaultDialer.Dial(base+"&token="+otherToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"&token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "hello over ws"}))
	var exchange models.ChatExchange
	require.NoError(t, conn.ReadJSON(&exchange))
	assert.Equal(t, "hello over ws", exchange.UserMessage.Content)
	assert.Equal(t, "I hear you.", exchange.AssistantMessage.Content)

	require.NoError(t, conn.WriteJSON(map[string]string{"content": "   "}))
	var frame map[string]map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "EMPTY_MESSAGE", frame["error"]["code"])

	assert.Eventually(t, func() bool { return s.container.Hub.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
