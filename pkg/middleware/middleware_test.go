package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	return r
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Hour)
	r := newTestEngine()
	r.GET("/admin", JWTAuthMiddleware(svc), RequireRole(jwt.RoleAdmin), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	userToken, err := svc.GenerateToken(1, "user@example.com", jwt.RoleUser)
	require.NoError(t, err)
	adminToken, err := svc.GenerateToken(2, "admin@example.com", jwt.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"user role", "Bearer " + userToken, http.StatusForbidden},
		{"admin role", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestJWTAuthAcceptsQueryToken(t *testing.T) {
	svc := jwt.NewService("test-secret", time.Hour)
	token, err := svc.GenerateToken(7, "ws@example.com", jwt.RoleUser)
	require.NoError(t, err)

	r := newTestEngine()
	r.GET("/ws", JWTAuthMiddleware(svc), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	limiter := NewRateLimiter(logger.Discard(), RateLimiterOptions{
		Limit: 0.001,
		Burst: 2,
		KeyFunc: func(c *gin.Context) string {
			return "fixed"
		},
	})

	r := newTestEngine()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(logger.Discard(), RateLimiterOptions{Limit: 1, Burst: 1, ExpiryDuration: time.Minute})
	limiter.getLimiter("a")
	limiter.getLimiter("b")

	assert.Equal(t, 0, limiter.evictIdle(time.Now()))
	assert.Equal(t, 2, limiter.evictIdle(time.Now().Add(2*time.Minute)))
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newTestEngine()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
