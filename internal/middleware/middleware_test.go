package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/memhubio/memhub/internal/pkg/jwt"
)

func TestRateLimiterBlocksWithinWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &rateLimiter{
		window: 10 * time.Second,
		last:   make(map[string]time.Time),
	}

	c1, _ := gin.CreateTestContext(httptest.NewRecorder())
	c1.Request = httptest.NewRequest("POST", "/api/v1/memory/search", nil)
	limiter.handle(c1)
	require.False(t, c1.IsAborted())

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("POST", "/api/v1/memory/search", nil)
	limiter.handle(c2)
	require.True(t, c2.IsAborted())
}

func TestRateLimiterKeyedByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := RateLimit(10 * time.Second)

	c1, _ := gin.CreateTestContext(httptest.NewRecorder())
	c1.Request = httptest.NewRequest("POST", "/api/v1/memory/search", nil)
	handler(c1)
	require.False(t, c1.IsAborted())

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("GET", "/api/v1/graph/entities", nil)
	handler(c2)
	require.False(t, c2.IsAborted())
}

func TestRateLimiterZeroWindowPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &rateLimiter{last: make(map[string]time.Time)}
	for i := 0; i < 3; i++ {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/api/v1/memory/search", nil)
		limiter.handle(c)
		require.False(t, c.IsAborted())
	}
}

func TestJWTAuthSetsUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("user-1", secret, time.Hour)
	require.NoError(t, err)

	handler := JWTAuth(secret)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/v1/graph/entities", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)
	handler(c)
	require.False(t, c.IsAborted())
	require.Equal(t, "user-1", c.GetString(ContextUserIDKey))

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest("GET", "/api/v1/graph/entities", nil)
	c2.Request.Header.Set("Authorization", "Bearer not-a-token")
	handler(c2)
	require.True(t, c2.IsAborted())

	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest("GET", "/api/v1/graph/entities", nil)
	handler(c3)
	require.True(t, c3.IsAborted())
}
