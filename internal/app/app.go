package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"catalogai/features/document"
	"catalogai/features/job"
	"catalogai/features/mcp"
	"catalogai/features/qa"
	"catalogai/features/stats"
	"catalogai/internal/answer"
	"catalogai/internal/config"
	"catalogai/internal/dimension"
	"catalogai/internal/embedding"
	"catalogai/internal/middleware"
	"catalogai/internal/retrieval"
	"catalogai/internal/settings"
	"catalogai/internal/text"
	"catalogai/internal/worker"
)

type App struct {
	Handler        http.Handler
	Documents      *document.Service
	Questions      *qa.Service
	IngestConsumer *worker.IngestConsumer

	port int
}

// New wires every feature onto db and vecStore. A nil taskPub makes
// document registration ingest inline instead of through the queue.
func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	embedProvider, generator, err := newProviders(cfg)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewClient(embedProvider, embedding.OptionsFromConfig(cfg))

	vocab, err := dimension.LoadVocabulary(cfg.VocabularyPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	extractor, err := dimension.NewExtractor(vocab)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	composer := answer.NewComposer(extractor, generator, cfg.StaticBaseURL)

	// Feature: Settings
	settingsService := settings.NewService(settings.NewPostgresRepo(db))
	settingsHandler := settings.NewHandler(settingsService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	var jobPub job.EventPublisher
	if taskPub != nil {
		jobPub = taskPub
	}
	jobService := job.NewService(jobRepo, jobPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, queryLogger)

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)
	chunking := text.Options{
		Size:       cfg.ChunkSize,
		Overlap:    cfg.ChunkOverlap,
		Strategy:   text.Strategy(cfg.ChunkStrategy),
		PagePrefix: cfg.ChunkPagePrefix,
	}
	if err := chunking.Validate(); err != nil {
		return nil, err
	}
	pipeline := document.NewPipeline(chunking, embedder, vecStore, docRepo)

	var docPub document.EventPublisher
	if taskPub != nil {
		docPub = taskPub
	}
	docService := document.NewService(docRepo, docPub, pipeline, vecStore, document.Options{
		PDFRoot:   cfg.PDFDir,
		ImageRoot: cfg.ImageRoot,
	})
	docHandler := document.NewHandler(docService)

	// Feature: QA
	qaService := qa.NewService(retrievalService, composer, settingsService, qa.Defaults{
		TopK:          cfg.RetrievalTopK,
		NumCandidates: cfg.RetrievalNumCandidates,
		Temperature:   cfg.GenTemperature,
	})
	qaHandler := qa.NewHandler(qaService)

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, jobRepo, vecStore)

	// Feature: MCP
	mcpDeps := mcp.Dependencies{Asker: qaService, Retriever: retrievalService, Documents: docService}
	if pages, ok := vecStore.(mcp.PageReader); ok {
		mcpDeps.Pages = pages
	}
	mcpHandler := mcp.NewHandler(mcpDeps)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}
	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(enableCORS(h))
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /ask", route(qaHandler.Ask))
	mux.Handle("OPTIONS /ask", route(qaHandler.Ask))

	mux.Handle("POST /documents", route(docHandler.Create))
	mux.Handle("POST /documents/pdf", route(docHandler.CreateFromPDF))
	mux.Handle("POST /documents/upload", route(docHandler.Upload))
	mux.Handle("GET /documents", route(docHandler.List))
	mux.Handle("GET /documents/{tenant}/{doc}", route(docHandler.Get))
	mux.Handle("DELETE /documents/{tenant}/{doc}", route(docHandler.Delete))

	mux.Handle("GET /settings", route(settingsHandler.GetSettings))
	mux.Handle("PUT /settings", route(settingsHandler.UpdateSettings))

	mux.Handle("GET /jobs/failed", route(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))

	mux.Handle("GET /stats", route(statsHandler.GetStats))

	mux.Handle("/mcp", middleware.CorrelationID(mcpHandler))
	mux.Handle("GET /mcp/sse", route(mcpHandler.HandleSSE))
	mux.Handle("POST /mcp/messages", route(mcpHandler.HandleMessage))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:        mux,
		Documents:      docService,
		Questions:      qaService,
		IngestConsumer: worker.NewIngestConsumer(pipeline, jobRepo, docRepo),
		port:           cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
