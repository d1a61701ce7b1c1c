package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func doRequest(e *echo.Echo, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	_ = handler(e.NewContext(req, rec))
	return rec
}

func TestVisitorLimiter_AllowsBurstThenLimits(t *testing.T) {
	e := echo.New()
	handler := NewVisitorLimiter(2, 4).Middleware()(okHandler)

	for i := 0; i < 4; i++ {
		rec := doRequest(e, handler, "192.168.1.2:12345")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i)
	}

	rec := doRequest(e, handler, "192.168.1.2:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "SYSTEM_006")
}

func TestVisitorLimiter_SeparateBucketsPerIP(t *testing.T) {
	e := echo.New()
	handler := NewVisitorLimiter(1, 1).Middleware()(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(e, handler, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(e, handler, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, doRequest(e, handler, "10.0.0.2:1000").Code)
}

func TestVisitorLimiter_Defaults(t *testing.T) {
	limiter := NewVisitorLimiter(0, 0)
	assert.Equal(t, 5, limiter.requestsPerSecond)
	assert.Equal(t, 10, limiter.burstSize)
}

func TestVisitorLimiter_EvictIdle(t *testing.T) {
	limiter := NewVisitorLimiter(5, 10)
	limiter.getVisitor("10.0.0.1")
	limiter.getVisitor("10.0.0.2")

	limiter.mu.Lock()
	limiter.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * visitorIdleTimeout)
	limiter.mu.Unlock()

	assert.Equal(t, 1, limiter.evictIdle(time.Now()))
	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "10.0.0.2")
}

func TestVisitorLimiter_RunCleanupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		NewVisitorLimiter(5, 10).RunCleanup(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
