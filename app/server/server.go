package server

import (
	"context"
	"log"
	"log/slog"

	"docvault/agent"
	"docvault/app/api"
	"docvault/app/middleware"
	"docvault/chunker"
	"docvault/config"
	"docvault/extract"
	"docvault/model"
	"docvault/service"
	"docvault/store"

	"github.com/gofiber/fiber/v2"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.PostgresStore
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

func (s *Server) Stop() {
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()

	db, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN())
	if err != nil {
		log.Fatal("error to connect to Postgres database ", err)
		return
	}
	s.db = db

	if err := db.Init(ctx, s.cfg.Embedding.Dimension); err != nil {
		log.Fatal("error to create tables ", err)
		return
	}

	objects, err := store.NewMinioStore(ctx, store.MinioConfig{
		Endpoint:  s.cfg.Storage.Endpoint,
		AccessKey: s.cfg.Storage.AccessKey,
		SecretKey: s.cfg.Storage.SecretKey,
		Bucket:    s.cfg.Storage.Bucket,
		UseSSL:    s.cfg.Storage.UseSSL,
	})
	if err != nil {
		log.Fatal("error to connect to object storage ", err)
		return
	}

	ch, err := chunker.New(s.cfg.Chunking.ChunkSize, s.cfg.Chunking.ChunkOverlap)
	if err != nil {
		log.Fatal("invalid chunking configuration ", err)
		return
	}

	var (
		embedder  = model.NewOllamaEmbedder(s.cfg.Embedding.URL, s.cfg.Embedding.Model, s.cfg.Embedding.Timeout)
		generator = agent.NewClient(s.cfg.LLM.URL, s.cfg.LLM.Model, s.cfg.LLM.Timeout)
		extractor = extract.New()

		documents = service.NewDocumentService(db, db, objects, extractor, embedder, ch, service.DocumentServiceConfig{
			MaxUploadSize: s.cfg.MaxUploadSize,
			PresignTTL:    s.cfg.PresignTTL,
		})
		search = service.NewSearchService(db, db, embedder, generator)

		app             = fiber.New(fiberConfig)
		checkHandler    = api.NewCheckHandler()
		searchHandler   = api.NewSearchHandler(search)
		documentHandler = api.NewDocumentHandler(documents)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1", middleware.JWTAuth(s.cfg.Auth.JWTSecret))
	)

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/search", searchHandler.HandleSearch)
	apiv1.Get("/search/health", searchHandler.HandleSearchHealth)
	apiv1.Post("/search/ask", searchHandler.HandleAsk)

	apiv1.Post("/documents", documentHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Get("/documents/:id", documentHandler.HandleGet)
	apiv1.Get("/documents/:id/chunks", documentHandler.HandleChunks)
	apiv1.Get("/documents/:id/url", documentHandler.HandleDownloadURL)
	apiv1.Get("/documents/:id/download", documentHandler.HandleDownload)
	apiv1.Patch("/documents/:id", documentHandler.HandleUpdate)
	apiv1.Delete("/documents/:id", documentHandler.HandleDelete)
	apiv1.Post("/documents/:id/reprocess", documentHandler.HandleReprocess)

	if err := app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return
	}
}
