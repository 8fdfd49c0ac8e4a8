package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/cache"
	"github.com/golangast/marabou/internal/metrics"
	"github.com/golangast/marabou/internal/server/router"
	"github.com/golangast/marabou/internal/service"
)

func newServeCommand(a *app) *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve both models over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelsDir == "" {
				modelsDir = a.cfg.Paths.EvaluationModels
			}
			return serve(cmd.Context(), a, modelsDir)
		},
	}
	cmd.Flags().StringVar(&modelsDir, "models", "", "artifact directory (default: paths.evaluation_models)")
	return cmd
}

func serve(ctx context.Context, a *app, modelsDir string) error {
	log := a.log
	gin.SetMode(a.cfg.Server.Mode)

	registry, err := service.LoadRegistry(ctx, modelsDir, log)
	if err != nil {
		return fmt.Errorf("failed to load models from %s: %w", modelsDir, err)
	}

	c, err := cache.New(ctx, &a.cfg.Redis)
	if err != nil {
		log.Warn("Failed to connect to Redis, continuing with in-process cache", zap.Error(err))
		c = cache.NewMemory(a.cfg.Redis.LocalSize, a.cfg.Redis.TTL)
	}
	defer func() { _ = c.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	r := router.Setup(router.Deps{
		Sentiment: service.NewSentimentService(registry.Sentiment, c, mt, log),
		Entities:  service.NewEntityService(registry.Entities, c, mt, log),
		Models:    registry.Loaded,
		Cache:     c,
		Gatherer:  reg,
		Log:       log,
	})

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
	return nil
}
