package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uacr-monitor/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"correlation_id": c.GetString(CorrelationIDKey),
			"subject":        c.GetString(SubjectKey),
		})
	})
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(newRouter(SecurityHeaders()), httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in release mode")
}

func TestCorrelationID(t *testing.T) {
	r := newRouter(CorrelationID())

	t.Run("generated when absent", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get("X-Correlation-ID"), 36)
	})

	t.Run("propagated when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		w := serve(r, req)

		assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))
		assert.Contains(t, w.Body.String(), "abc-123")
	})
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(50 * time.Millisecond))
	r.GET("/deadline", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"has_deadline": ok})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	assert.JSONEq(t, `{"has_deadline":true}`, w.Body.String())
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	serve(newRouter(CorrelationID(), AuditLogger(logger)), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "/ping", entry["path"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
	assert.Equal(t, "Request completed", entry["msg"])
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(NewClientLimiter(0.001, 2)))

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrCodeRateLimit, apiErr.Code)
}

func TestClientLimiter_PerClient(t *testing.T) {
	l := NewClientLimiter(0.001, 1)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestClientLimiter_Eviction(t *testing.T) {
	t.Run("bounded by capacity", func(t *testing.T) {
		l := NewClientLimiterWithCapacity(0.001, 1, 2, time.Hour)
		for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
			l.Allow(ip)
		}
		assert.Equal(t, 2, l.Clients())

		// 10.0.0.1 was evicted, so it starts with a fresh bucket.
		assert.True(t, l.Allow("10.0.0.1"))
	})

	t.Run("idle clients expire", func(t *testing.T) {
		l := NewClientLimiterWithCapacity(0.001, 1, 10, 20*time.Millisecond)
		l.Allow("10.0.0.1")
		require.Eventually(t, func() bool { return l.Clients() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestBearerAuth(t *testing.T) {
	secret := []byte("test-secret")
	r := newRouter(BearerAuth(secret))
	valid := jwt.MapClaims{"sub": "dr-lee", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, valid), http.StatusOK},
		{"token without prefix", signToken(t, jwt.SigningMethodHS256, secret, valid), http.StatusOK},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, secret,
			jwt.MapClaims{"sub": "dr-lee", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, secret,
			jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), http.StatusUnauthorized},
		{"unsigned", "Bearer " + signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), "dr-lee")
			}
		})
	}
}

func TestBearerAuth_DisabledWithoutSecret(t *testing.T) {
	w := serve(newRouter(BearerAuth(nil)), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
