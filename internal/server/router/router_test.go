package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/golangast/marabou/internal/cache"
	"github.com/golangast/marabou/internal/metrics"
	"github.com/golangast/marabou/internal/service"
)

func TestSetupRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	mt.Cache("sentiment_analysis", true)

	r := Setup(Deps{
		Sentiment: service.NewSentimentService(nil, nil, mt, nil),
		Entities:  service.NewEntityService(nil, nil, mt, nil),
		Models:    func() map[string]bool { return map[string]bool{"sentiment_analysis": false} },
		Cache:     cache.NewMemory(0, 0),
		Gatherer:  reg,
	})

	tests := []struct {
		method, path string
		status       int
	}{
		{"GET", "/health", http.StatusServiceUnavailable},
		{"GET", "/ready", http.StatusServiceUnavailable},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/sentimentAnalysis?query=x", http.StatusServiceUnavailable},
		{"GET", "/namedEntityRecognition?query=%5Bx%5D", http.StatusServiceUnavailable},
		{"GET", "/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil).WithContext(context.Background())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "marabou_cache_hits_total")
}
