package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/logger"
	"github.com/golangast/marabou/internal/service"
)

// SentimentPredictor scores texts.
type SentimentPredictor interface {
	Predict(ctx context.Context, texts []string) ([]service.SentimentResult, error)
}

// EntityPredictor tags the words of texts.
type EntityPredictor interface {
	Predict(ctx context.Context, texts []string) (service.EntityResult, error)
}

// PredictRequest is the body of the JSON prediction endpoints.
type PredictRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// PredictHandler serves both prediction tasks.
type PredictHandler struct {
	sentiment SentimentPredictor
	entities  EntityPredictor
	log       *zap.Logger
}

// NewPredictHandler creates a new prediction handler
func NewPredictHandler(s SentimentPredictor, e EntityPredictor, log *zap.Logger) *PredictHandler {
	return &PredictHandler{sentiment: s, entities: e, log: logger.OrNop(log)}
}

// Sentiment handles POST /api/v1/sentiment
func (h *PredictHandler) Sentiment(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	res, err := h.sentiment.Predict(c.Request.Context(), req.Texts)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// Entities handles POST /api/v1/entities
func (h *PredictHandler) Entities(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	res, err := h.entities.Predict(c.Request.Context(), req.Texts)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// SentimentAnalysis handles GET and POST /sentimentAnalysis. The reply is the
// bare score of each text: a number for one text, an array for several.
func (h *PredictHandler) SentimentAnalysis(c *gin.Context) {
	texts := legacyTexts(c)
	if texts == nil {
		HandleInvalidRequest(c, "missing query")
		return
	}
	res, err := h.sentiment.Predict(c.Request.Context(), texts)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(res) == 1 {
		c.JSON(http.StatusOK, res[0].Score)
		return
	}
	scores := make([]float64, len(res))
	for i, r := range res {
		scores[i] = r.Score
	}
	c.JSON(http.StatusOK, scores)
}

// NamedEntityRecognition handles GET and POST /namedEntityRecognition. A GET
// query of the form "[a,b]" is a list of texts. The reply is the rendered
// word/entity table as a JSON string.
func (h *PredictHandler) NamedEntityRecognition(c *gin.Context) {
	var texts []string
	if c.Request.Method == http.MethodGet {
		if q, ok := c.GetQuery("query"); ok {
			texts = strings.Split(strings.Trim(strings.TrimSpace(q), "[]"), ",")
		}
	} else if content, ok := c.GetPostForm("content"); ok {
		texts = []string{content}
	}
	if texts == nil {
		HandleInvalidRequest(c, "missing query")
		return
	}
	res, err := h.entities.Predict(c.Request.Context(), texts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Visualization)
}

func legacyTexts(c *gin.Context) []string {
	if c.Request.Method == http.MethodGet {
		if q, ok := c.GetQueryArray("query"); ok {
			return q
		}
		return nil
	}
	if content, ok := c.GetPostForm("content"); ok {
		return []string{content}
	}
	return nil
}

func (h *PredictHandler) fail(c *gin.Context, err error) {
	if MapServiceError(err).StatusCode >= http.StatusInternalServerError {
		h.log.Error("prediction failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	HandleServiceError(c, err)
}
