package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/logger"
	"github.com/golangast/marabou/internal/server/handler"
	"github.com/golangast/marabou/internal/server/middleware"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Sentiment handler.SentimentPredictor
	Entities  handler.EntityPredictor
	Models    func() map[string]bool
	Cache     handler.Pinger
	Gatherer  prometheus.Gatherer
	Log       *zap.Logger
}

// Setup creates and configures the Gin router
func Setup(d Deps) *gin.Engine {
	d.Log = logger.OrNop(d.Log)
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(d.Log))
	router.Use(middleware.Recovery(d.Log))

	healthHandler := handler.NewHealthHandler(d.Models, d.Cache)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	predictHandler := handler.NewPredictHandler(d.Sentiment, d.Entities, d.Log)

	router.GET("/sentimentAnalysis", predictHandler.SentimentAnalysis)
	router.POST("/sentimentAnalysis", predictHandler.SentimentAnalysis)
	router.GET("/namedEntityRecognition", predictHandler.NamedEntityRecognition)
	router.POST("/namedEntityRecognition", predictHandler.NamedEntityRecognition)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sentiment", predictHandler.Sentiment)
		v1.POST("/entities", predictHandler.Entities)
	}

	return router
}
