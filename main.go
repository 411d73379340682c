package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"family-album/api"
	"family-album/config"
	"family-album/embedding"
	"family-album/service"
	"family-album/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewMongoMetadataDB(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Fatal("failed to connect to metadata store", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Close(shutdownCtx); err != nil {
			logger.Warn("metadata store close failed", zap.Error(err))
		}
	}()

	objects, err := storage.NewMinioObjectStorage(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to object store", zap.Error(err))
	}

	vectors, err := storage.OpenVecgoVectorIndex(cfg.VectorDir, cfg.VectorDimension, logger)
	if err != nil {
		logger.Fatal("failed to open vector index", zap.Error(err))
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			logger.Warn("vector index close failed", zap.Error(err))
		}
	}()

	embedder := &embedding.Composite{
		Text: embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EmbeddingModel,
		}),
		Image: embedding.NewImageFeatureProvider(),
	}

	handlers := &api.Handlers{
		Library: service.NewLibrary(db, objects, vectors, embedder, cfg.SignTTL, logger),
		Albums:  service.NewAlbums(db, objects, vectors, embedder, cfg.SignTTL, cfg.ScoreThreshold, logger),
		Deleter: service.NewDeleter(db, objects, vectors, cfg.DeleteWorkers, logger),
		Log:     logger,
	}

	mux := http.NewServeMux()
	handlers.Register(mux)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
