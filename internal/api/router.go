package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/docuview/docuview/internal/api/handlers"
	"github.com/docuview/docuview/internal/api/middleware"
	"github.com/docuview/docuview/internal/auth"
	"github.com/docuview/docuview/internal/cache"
	"github.com/docuview/docuview/internal/config"
	"github.com/docuview/docuview/internal/document"
	"github.com/docuview/docuview/internal/enrich"
	"github.com/docuview/docuview/internal/llm"
	"github.com/docuview/docuview/internal/queue"
	"github.com/docuview/docuview/internal/storage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware

	reader *document.SyncReader
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Pipeline wiring
	local := cache.New(rt.redis)
	feed := document.NewRedisFeed(rt.redis)
	coll := document.NewPgCollection(rt.db, feed)
	store := document.NewTieredStore(local, coll)

	var blobs document.BlobStore
	if rt.cfg.HasBlobStorage() {
		blobs = storage.NewClient(rt.cfg.Storage)
	} else {
		slog.Warn("blob storage not configured, files stored inline")
	}

	var enricher document.AIEnricher
	if rt.cfg.HasAI() {
		gw := llm.NewGateway(rt.cfg.LLM)
		var images *enrich.ImageGenerator
		if rt.cfg.LLM.OpenAIKey != "" {
			images = enrich.NewImageGenerator(rt.cfg.LLM.OpenAIKey, rt.cfg.LLM.ImageModel)
		}
		enricher = enrich.NewEnricher(gw, images, rt.cfg.LLM.DefaultModel)
	} else {
		slog.Warn("no AI provider configured, enrichment disabled")
	}

	queueClient := queue.NewClient(rt.cfg.Redis)
	docSvc := document.NewService(store, blobs, enricher, queueClient)

	rt.reader = document.NewSyncReader(coll, feed)
	if err := rt.reader.Start(ctx); err != nil {
		slog.Warn("library view could not load its first page", "error", err)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		docH := handlers.NewDocumentHandler(docSvc, rt.reader, coll)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Post("/more", docH.LoadMore)
			r.Get("/featured", docH.Featured)
			r.Get("/search", docH.Search)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Post("/{id}/summarize", docH.Summarize)
		})
	})

	return r
}

// Close releases the live view subscription.
func (rt *Router) Close() {
	if rt.reader != nil {
		rt.reader.Stop()
	}
}
