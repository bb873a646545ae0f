// Package main runs the transcription endpoint server. It receives upload
// notifications and transcribe requests from the recorder daemon, pulls audio
// from the object store, and runs it through the configured speech provider.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/config"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/endpoint"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/middleware"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	storeCfg := storage.Config{
		AccountID:            cfg.Store.AccountID,
		AccessKeyID:          cfg.Store.AccessKeyID,
		SecretAccessKey:      cfg.Store.SecretAccessKey,
		Bucket:               cfg.Store.Bucket,
		Endpoint:             cfg.Store.Endpoint,
		PresignExpireMinutes: cfg.Store.PresignExpireMinutes,
	}
	store, err := storage.New(ctx, storeCfg, logger)
	if err != nil {
		logger.Fatal("object store", zap.Error(err))
	}

	provider, err := endpoint.NewProvider(cfg.Transcribe.Provider, cfg.Transcribe.APIKey, cfg.Transcribe.AccountID, cfg.Transcribe.Model)
	if err != nil {
		logger.Warn("transcription disabled", zap.Error(err))
	} else {
		logger.Info("transcription provider ready",
			zap.String("provider", cfg.Transcribe.Provider),
			zap.String("model", provider.Model()),
		)
	}

	handler := endpoint.NewHandler(store, provider, store.Bucket(), cfg.Server.MaxUploadMB, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.POST("/", handler.NotifyUpload)
	router.POST("/transcribe", handler.Transcribe)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
