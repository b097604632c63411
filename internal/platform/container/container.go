package container

import (
	"context"
	"fmt"
	"log/slog"

	coreask "github.com/knowref/faq-rag/internal/core/ask"
	"github.com/knowref/faq-rag/internal/core/eval"
	"github.com/knowref/faq-rag/internal/core/extract"
	coreingestion "github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	coresearch "github.com/knowref/faq-rag/internal/core/search"
	"github.com/knowref/faq-rag/internal/infra/memory"
	"github.com/knowref/faq-rag/internal/infra/openai"
	"github.com/knowref/faq-rag/internal/infra/pdf"
	"github.com/knowref/faq-rag/internal/infra/postgres"
	"github.com/knowref/faq-rag/internal/platform/config"
	"github.com/knowref/faq-rag/pkg/db"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	RebuildService *coreingestion.RebuildService
	SearchService  *coresearch.Service
	AskService     *coreask.Service
	Evaluator      *eval.Evaluator

	logger   *slog.Logger
	database *db.DB // memoryバックエンドの場合は nil
}

type containerOptions struct {
	logger    *slog.Logger
	embedder  coreingestion.Embedder
	llmClient coreask.LLMClient
	extractor extract.PageExtractor
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder coreingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client coreask.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerExtractor は PageExtractor を差し替える
func WithContainerExtractor(extractor extract.PageExtractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithDocumentPrefix(cfg.OpenAI.DocumentPrefix),
			openai.WithQueryPrefix(cfg.OpenAI.QueryPrefix),
		)
	}

	// LLMClient (OpenAI)
	llmClient := options.llmClient
	if llmClient == nil {
		client, err := openai.NewClient(
			cfg.OpenAI.APIKey,
			openai.WithModel(cfg.OpenAI.LLMModel),
			openai.WithTemperature(cfg.OpenAI.LLMTemperature),
			openai.WithMaxTokens(cfg.OpenAI.LLMMaxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		llmClient = client
	}

	// PageExtractor (go-fitz + Tesseract)
	extractor := options.extractor
	if extractor == nil {
		ocrEngine := pdf.NewTesseractEngine(cfg.OCR.Language)
		extractor = pdf.NewExtractor(ocrEngine, pdf.WithDPI(cfg.OCR.DPI))
	}
	extractService := extract.NewService(extractor, options.logger)

	// QAChunker
	chunker, err := chunk.NewQAChunker(&chunk.Config{
		MaxTokens:       cfg.Chunker.MaxTokens,
		QuestionPattern: cfg.Chunker.QuestionPattern,
	})
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	// インデックスバックエンド
	var (
		ingestionRepo coreingestion.Repository
		searchRepo    coresearch.Repository
		database      *db.DB
	)
	switch cfg.Index.Backend {
	case "memory":
		index := memory.NewIndex()
		ingestionRepo = index
		searchRepo = index
	case "postgres", "":
		database, err = db.New(ctx, db.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, database.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
			database.Close()
			return nil, fmt.Errorf("スキーマ適用に失敗しました: %w", err)
		}
		ingestionRepo = postgres.NewRepository(database.Pool)
		searchRepo = postgres.NewSearchRepository(database.Pool)
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}

	// RebuildService
	rebuildService := coreingestion.NewRebuildService(
		ingestionRepo,
		extractService,
		extractService,
		chunker,
		embedder,
		coreingestion.WithRebuildLogger(options.logger),
		coreingestion.WithRebuildPipelineConfig(&coreingestion.PipelineConfig{
			DocumentWorkerCount:  cfg.Pipeline.DocumentWorkers,
			EmbeddingWorkerCount: cfg.Pipeline.EmbeddingWorkers,
			EmbeddingBatchSize:   cfg.Pipeline.EmbeddingBatchSize,
			FailOnEmbeddingError: cfg.Pipeline.FailOnEmbeddingError,
		}),
	)

	// SearchService
	searchService := coresearch.NewService(searchRepo, embedder, options.logger)

	// AskService
	askService, err := coreask.NewService(
		searchService,
		llmClient,
		coreask.WithAskLogger(options.logger),
		coreask.WithDefaultK(cfg.Retrieval.DefaultK),
		coreask.WithMaxContextTokens(cfg.Prompt.MaxContextTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("AskService 初期化に失敗しました: %w", err)
	}

	// Evaluator
	evaluator := eval.NewEvaluator(searchService, options.logger)

	return &ServiceContainer{
		RebuildService: rebuildService,
		SearchService:  searchService,
		AskService:     askService,
		Evaluator:      evaluator,
		logger:         options.logger,
		database:       database,
	}, nil
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
