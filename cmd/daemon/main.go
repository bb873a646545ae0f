// Package main runs the local recorder daemon: the WebSocket gateway the
// desktop UI drives to save, list, replay, delete, and transcribe recordings.
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
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/gateway"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/history"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/middleware"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/transcribe"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/upload"
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

	// The daemon starts without credentials; operations that need the store
	// report the missing fields instead.
	var store storage.ObjectStore
	if missing := storeCfg.MissingFields(); len(missing) == 0 {
		client, err := storage.New(ctx, storeCfg, logger)
		if err != nil {
			logger.Fatal("object store", zap.Error(err))
		}
		store = client
	} else {
		logger.Warn("object store not configured", zap.Strings("missing", missing))
	}

	hist := history.NewStore()
	presignTTL := time.Duration(storeCfg.PresignExpireMinutes) * time.Minute
	reconciler := history.NewReconciler(store, hist, storeCfg.Bucket, presignTTL, logger)

	var notifier upload.Notifier
	var requestor *transcribe.Requestor
	if cfg.Transcribe.ServerURL != "" {
		timeout := time.Duration(cfg.Transcribe.TimeoutSeconds) * time.Second
		announce := transcribe.NewNotifier(cfg.Transcribe.ServerURL, timeout, logger)
		notifier = upload.NotifierFunc(func(ctx context.Context, key, audioURL string) error {
			_, err := announce.NotifyUploaded(ctx, key, audioURL)
			return err
		})
		requestor = transcribe.NewRequestor(cfg.Transcribe.ServerURL, timeout, logger)
	}

	orchestrator := upload.NewOrchestrator(store, hist, storeCfg, notifier, logger)

	hub := gateway.NewHub(logger)
	core := &gateway.Core{
		Orchestrator: orchestrator,
		Reconciler:   reconciler,
		History:      hist,
		Requestor:    requestor,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"clients":   hub.ClientCount(),
			"recording": hub.Recording(),
		})
	})
	router.GET("/ws", gateway.ServeWs(hub, core, logger))

	srv := &http.Server{
		Addr:    ":" + cfg.Gateway.Port,
		Handler: router,
	}

	go func() {
		logger.Info("daemon listening", zap.String("port", cfg.Gateway.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("daemon", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("daemon shutdown", zap.Error(err))
	}
	logger.Info("daemon stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
