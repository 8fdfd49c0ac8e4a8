package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/golangast/marabou/internal/service"
)

// MockSentiment is a mock implementation of SentimentPredictor
type MockSentiment struct {
	mock.Mock
}

func (m *MockSentiment) Predict(ctx context.Context, texts []string) ([]service.SentimentResult, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SentimentResult), args.Error(1)
}

// MockEntities is a mock implementation of EntityPredictor
type MockEntities struct {
	mock.Mock
}

func (m *MockEntities) Predict(ctx context.Context, texts []string) (service.EntityResult, error) {
	args := m.Called(ctx, texts)
	return args.Get(0).(service.EntityResult), args.Error(1)
}

type mockPinger struct{ err error }

func (p mockPinger) Ping(context.Context) error { return p.err }

func setupTestRouter(h *PredictHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sentimentAnalysis", h.SentimentAnalysis)
	r.POST("/sentimentAnalysis", h.SentimentAnalysis)
	r.GET("/namedEntityRecognition", h.NamedEntityRecognition)
	r.POST("/namedEntityRecognition", h.NamedEntityRecognition)
	r.POST("/api/v1/sentiment", h.Sentiment)
	r.POST("/api/v1/entities", h.Entities)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSentimentAnalysis_GetSingle(t *testing.T) {
	ms := new(MockSentiment)
	ms.On("Predict", mock.Anything, []string{"great movie"}).
		Return([]service.SentimentResult{{Text: "great movie", Probability: 0.876543, Score: 87.65, Label: "positive"}}, nil)
	router := setupTestRouter(NewPredictHandler(ms, nil, nil))

	req, _ := http.NewRequest("GET", "/sentimentAnalysis?query="+url.QueryEscape("great movie"), nil)
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `87.65`, w.Body.String())
	ms.AssertExpectations(t)
}

func TestSentimentAnalysis_GetMany(t *testing.T) {
	ms := new(MockSentiment)
	ms.On("Predict", mock.Anything, []string{"a", "b"}).
		Return([]service.SentimentResult{{Score: 10}, {Score: 90.5}}, nil)
	router := setupTestRouter(NewPredictHandler(ms, nil, nil))

	req, _ := http.NewRequest("GET", "/sentimentAnalysis?query=a&query=b", nil)
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[10, 90.5]`, w.Body.String())
}

func TestSentimentAnalysis_PostForm(t *testing.T) {
	ms := new(MockSentiment)
	ms.On("Predict", mock.Anything, []string{"boring"}).
		Return([]service.SentimentResult{{Score: 3.2}}, nil)
	router := setupTestRouter(NewPredictHandler(ms, nil, nil))

	req, _ := http.NewRequest("POST", "/sentimentAnalysis", strings.NewReader(url.Values{"content": {"boring"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `3.2`, w.Body.String())
}

func TestSentimentAnalysis_MissingQuery(t *testing.T) {
	ms := new(MockSentiment)
	router := setupTestRouter(NewPredictHandler(ms, nil, nil))

	req, _ := http.NewRequest("GET", "/sentimentAnalysis", nil)
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	ms.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestNamedEntityRecognition_GetList(t *testing.T) {
	me := new(MockEntities)
	me.On("Predict", mock.Anything, []string{"John lives in London", " Mary"}).
		Return(service.EntityResult{Visualization: "table"}, nil)
	router := setupTestRouter(NewPredictHandler(nil, me, nil))

	q := url.QueryEscape("[John lives in London, Mary]")
	req, _ := http.NewRequest("GET", "/namedEntityRecognition?query="+q, nil)
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"table"`, w.Body.String())
	me.AssertExpectations(t)
}

func TestNamedEntityRecognition_PostForm(t *testing.T) {
	me := new(MockEntities)
	me.On("Predict", mock.Anything, []string{"Paris in May"}).
		Return(service.EntityResult{Visualization: "rows"}, nil)
	router := setupTestRouter(NewPredictHandler(nil, me, nil))

	req, _ := http.NewRequest("POST", "/namedEntityRecognition", strings.NewReader("content=Paris+in+May"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"rows"`, w.Body.String())
}

func TestAPISentiment_Success(t *testing.T) {
	ms := new(MockSentiment)
	ms.On("Predict", mock.Anything, []string{"fine"}).
		Return([]service.SentimentResult{{Text: "fine", Probability: 0.5, Score: 50, Label: "positive"}}, nil)
	router := setupTestRouter(NewPredictHandler(ms, nil, nil))

	req, _ := http.NewRequest("POST", "/api/v1/sentiment", bytes.NewBufferString(`{"texts":["fine"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                      `json:"success"`
		Data    []service.SentimentResult `json:"data"`
		Meta    MetaInfo                  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "positive", resp.Data[0].Label)
	assert.NotEmpty(t, resp.Meta.RequestID)
}

func TestAPISentiment_InvalidBody(t *testing.T) {
	router := setupTestRouter(NewPredictHandler(new(MockSentiment), nil, nil))

	req, _ := http.NewRequest("POST", "/api/v1/sentiment", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIEntities_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty query", service.ErrEmptyQuery, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not loaded", service.ErrModelNotLoaded, http.StatusServiceUnavailable, "MODEL_NOT_LOADED"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := new(MockEntities)
			me.On("Predict", mock.Anything, []string{""}).Return(service.EntityResult{}, tt.err)
			router := setupTestRouter(NewPredictHandler(nil, me, nil))

			req, _ := http.NewRequest("POST", "/api/v1/entities", bytes.NewBufferString(`{"texts":[""]}`))
			req.Header.Set("Content-Type", "application/json")
			w := serve(router, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		models map[string]bool
		cache  Pinger
		status int
	}{
		{"all up", map[string]bool{"sentiment_analysis": true}, mockPinger{}, http.StatusOK},
		{"no cache", map[string]bool{"sentiment_analysis": true}, nil, http.StatusOK},
		{"model missing", map[string]bool{"sentiment_analysis": false}, mockPinger{}, http.StatusServiceUnavailable},
		{"cache down", map[string]bool{"sentiment_analysis": true}, mockPinger{err: errors.New("refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(func() map[string]bool { return tt.models }, tt.cache)
			r := gin.New()
			r.GET("/health", h.Health)
			r.GET("/ready", h.Ready)

			req, _ := http.NewRequest("GET", "/health", nil)
			assert.Equal(t, tt.status, serve(r, req).Code)

			ready := http.StatusOK
			if !tt.models["sentiment_analysis"] {
				ready = http.StatusServiceUnavailable
			}
			req, _ = http.NewRequest("GET", "/ready", nil)
			assert.Equal(t, ready, serve(r, req).Code)
		})
	}
}
