package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-noticeboard/internal/service"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	return w
}

func TestReady(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	ok := NewMetricsHandler(nil, map[string]HealthCheck{"database": healthy})
	assert.Equal(t, http.StatusOK, serve(ok.Ready).Code)

	down := NewMetricsHandler(nil, map[string]HealthCheck{
		"database": healthy,
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	w := serve(down.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"dial tcp: refused"`)
	assert.NotContains(t, w.Body.String(), `"database"`)
}

func TestHealthAndPrometheus(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil)
	assert.Equal(t, http.StatusOK, serve(h.Health).Code)

	w := serve(h.Prometheus)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
