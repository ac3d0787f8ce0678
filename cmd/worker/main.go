package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/docuview/docuview/internal/cache"
	"github.com/docuview/docuview/internal/config"
	"github.com/docuview/docuview/internal/database"
	"github.com/docuview/docuview/internal/document"
	"github.com/docuview/docuview/internal/enrich"
	"github.com/docuview/docuview/internal/llm"
	"github.com/docuview/docuview/internal/queue"
	"github.com/docuview/docuview/internal/queue/workers"
	"github.com/docuview/docuview/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	local := cache.New(rdb)
	feed := document.NewRedisFeed(rdb)
	coll := document.NewPgCollection(db, feed)
	store := document.NewTieredStore(local, coll)

	var blobs document.BlobStore
	if cfg.HasBlobStorage() {
		blobs = storage.NewClient(cfg.Storage)
	}

	var enricher document.AIEnricher
	if cfg.HasAI() {
		gw := llm.NewGateway(cfg.LLM)
		var images *enrich.ImageGenerator
		if cfg.LLM.OpenAIKey != "" {
			images = enrich.NewImageGenerator(cfg.LLM.OpenAIKey, cfg.LLM.ImageModel)
		}
		enricher = enrich.NewEnricher(gw, images, cfg.LLM.DefaultModel)
	} else {
		slog.Warn("no AI provider configured, enrichment tasks will be no-ops")
	}

	docSvc := document.NewService(store, blobs, enricher, nil)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	enrichWorker := workers.NewEnrichWorker(docSvc)
	summarizeWorker := workers.NewSummarizeWorker(docSvc)

	registry.Register(queue.TypeDocumentEnrich, asynq.HandlerFunc(enrichWorker.ProcessTask))
	registry.Register(queue.TypeDocumentSummarize, asynq.HandlerFunc(summarizeWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
