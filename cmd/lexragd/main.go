package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexrag/lexrag/internal/answer"
	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/chunking"
	"github.com/lexrag/lexrag/internal/config"
	"github.com/lexrag/lexrag/internal/embedding"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/repository/postgres"
	"github.com/lexrag/lexrag/internal/search"
	"github.com/lexrag/lexrag/internal/server"
	"github.com/lexrag/lexrag/internal/service"
	"github.com/lexrag/lexrag/internal/tokenizer"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting retrieval service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"index", cfg.VectorIndex,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	documentRepo := postgres.NewDocumentRepo(db)

	// Initialize Qdrant vector store
	store, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()
	slog.Info("connected to Qdrant")

	// Initialize tokenizer and chunker
	tok, err := tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer: %w", err)
	}
	chunker := chunking.NewChunker(chunking.NewPDFSource(), tok, cfg.ChunkSize, cfg.ChunkOverlap)

	// Initialize embedding providers
	dense := embedding.NewOpenAIDense(embedding.OpenAIDenseConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.EmbeddingModel,
	})
	sparse := embedding.NewPineconeSparse(embedding.PineconeSparseConfig{
		BaseURL: cfg.SparseBaseURL,
		APIKey:  cfg.SparseAPIKey,
		Model:   cfg.SparseModel,
	})
	embedder := embedding.NewHybridEmbedder(dense, sparse,
		embedding.WithBatchSize(cfg.EmbedBatchSize),
		embedding.WithBatchDelay(cfg.EmbedBatchDelay),
	)
	slog.Info("initialized hybrid embedder",
		"dense_model", cfg.EmbeddingModel,
		"sparse_model", cfg.SparseModel,
	)

	// Initialize answer composer
	llmClient := answer.NewOpenAIClient(cfg.OpenAIAPIKey,
		answer.WithBaseURL(cfg.OpenAIBaseURL),
		answer.WithModel(cfg.ChatModel),
	)
	composer := answer.NewComposer(llmClient)
	slog.Info("initialized answer composer", "model", cfg.ChatModel)

	// Initialize services
	engine := search.NewEngine(embedder, store)
	documentSvc := service.NewDocumentService(chunker, embedder, store, documentRepo, cfg.VectorIndex, slog.Default())
	querySvc := service.NewQueryService(engine, composer, documentRepo, cfg.VectorIndex, slog.Default())

	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig(cfg.JWTSecret))

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		JWTManager:     jwtManager,
		Documents:      documentSvc,
		Queries:        querySvc,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.DocumentRepository = (*postgres.DocumentRepo)(nil)
	_ vectorstore.Store             = (*vectorstore.QdrantStore)(nil)
	_ embedding.DenseProvider       = (*embedding.OpenAIDense)(nil)
	_ embedding.SparseProvider      = (*embedding.PineconeSparse)(nil)
	_ tokenizer.Tokenizer           = (*tokenizer.Tiktoken)(nil)
	_ chunking.TextSource           = (*chunking.PDFSource)(nil)
	_ search.QueryEmbedder          = (*embedding.HybridEmbedder)(nil)
	_ service.ChunkEmbedder         = (*embedding.HybridEmbedder)(nil)
	_ answer.LLM                    = (*answer.OpenAIClient)(nil)
)
