package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CorpusLister はコーパスディレクトリ内の対象ファイル一覧を返す
type CorpusLister interface {
	ListCorpus(dir string) ([]string, error)
}

// RebuildParams はインデックス再構築のパラメータ
type RebuildParams struct {
	// CorpusDir はPDFコーパスのディレクトリ
	CorpusDir string
	// KeepInactive は再構築後も非アクティブな旧バージョンを残すかどうか
	KeepInactive bool
}

// RebuildResult はインデックス再構築の結果
type RebuildResult struct {
	VersionID          uuid.UUID
	ProcessedDocuments int
	TotalChunks        int
	TotalPages         int
	OCRPages           int
	FailedDocuments    int
	DeletedVersions    int
	Duration           time.Duration
}

// RebuildService はインデックス再構築のユースケースを提供する。
// 再構築は常に新しいバージョンへのフルビルドとして行われ、成功時のみ
// アクティブバージョンが切り替わる。途中で失敗した場合、既存の
// アクティブバージョンはそのまま残る。
type RebuildService struct {
	repository     Repository
	lister         CorpusLister
	loader         DocumentLoader
	chunker        Chunker
	embedder       Embedder
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

type rebuildServiceOptions struct {
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

// RebuildServiceOption は RebuildService のオプション設定
type RebuildServiceOption func(*rebuildServiceOptions)

// WithRebuildLogger は RebuildService にロガーを設定する
func WithRebuildLogger(logger *slog.Logger) RebuildServiceOption {
	return func(o *rebuildServiceOptions) {
		o.logger = logger
	}
}

// WithRebuildPipelineConfig はパイプライン設定を上書きする
func WithRebuildPipelineConfig(cfg *PipelineConfig) RebuildServiceOption {
	return func(o *rebuildServiceOptions) {
		o.pipelineConfig = cfg
	}
}

// NewRebuildService は新しいRebuildServiceを作成する
func NewRebuildService(
	repo Repository,
	lister CorpusLister,
	loader DocumentLoader,
	chunker Chunker,
	embedder Embedder,
	opts ...RebuildServiceOption,
) *RebuildService {
	options := rebuildServiceOptions{
		pipelineConfig: DefaultPipelineConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.pipelineConfig == nil {
		options.pipelineConfig = DefaultPipelineConfig()
	}

	return &RebuildService{
		repository:     repo,
		lister:         lister,
		loader:         loader,
		chunker:        chunker,
		embedder:       embedder,
		pipelineConfig: options.pipelineConfig,
		logger:         options.logger,
	}
}

// Rebuild はコーパス全体からインデックスを再構築する
func (s *RebuildService) Rebuild(ctx context.Context, params RebuildParams) (*RebuildResult, error) {
	startTime := time.Now()

	s.logger.Info("インデックス再構築を開始",
		"corpusDir", params.CorpusDir,
		"embeddingModel", s.embedder.ModelName(),
	)

	paths, err := s.lister.ListCorpus(params.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus: %w", err)
	}

	// コーパスが空の場合は既存のアクティブバージョンを壊さずにエラーを返す
	if len(paths) == 0 {
		return nil, fmt.Errorf("no PDF files found in corpus directory: %s", params.CorpusDir)
	}

	s.logger.Info("コーパスを取得", "documents", len(paths))

	version, err := s.repository.CreateIndexVersion(ctx, s.embedder.ModelName(), s.embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to create index version: %w", err)
	}

	pipeline := NewIndexPipeline(
		s.repository,
		s.loader,
		s.chunker,
		s.embedder,
		s.pipelineConfig,
		s.logger,
	)

	stats, err := pipeline.ProcessCorpus(ctx, version.ID, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to process corpus: %w", err)
	}

	// 1件も処理できなかった場合はアクティブ切り替えを行わない
	if stats.ProcessedDocuments == 0 {
		return nil, fmt.Errorf("no documents were indexed (%d failed)", stats.FailedDocuments)
	}

	// Embeddingが1件も保存できなかった新バージョンは検索不能なため、
	// アクティブ切り替えを行わず既存のアクティブバージョンを残す
	if stats.TotalChunks == 0 || stats.FailedEmbeddings >= stats.TotalChunks {
		return nil, fmt.Errorf("no embeddings were stored (%d chunks, %d embedding failures)",
			stats.TotalChunks, stats.FailedEmbeddings)
	}

	// ここで初めて新バージョンが検索対象になる
	if err := s.repository.ActivateIndexVersion(ctx, version.ID); err != nil {
		return nil, fmt.Errorf("failed to activate index version: %w", err)
	}

	deletedVersions := 0
	if !params.KeepInactive {
		deleted, err := s.repository.DeleteInactiveVersions(ctx)
		if err != nil {
			// 旧バージョンの掃除失敗は再構築自体の失敗にはしない
			s.logger.Warn("非アクティブバージョンの削除に失敗", "error", err)
		} else {
			deletedVersions = deleted
		}
	}

	duration := time.Since(startTime)

	s.logger.Info("インデックス再構築が完了",
		"versionID", version.ID,
		"processedDocuments", stats.ProcessedDocuments,
		"totalChunks", stats.TotalChunks,
		"totalPages", stats.TotalPages,
		"ocrPages", stats.OCRPages,
		"failedDocuments", stats.FailedDocuments,
		"duration", duration,
	)

	return &RebuildResult{
		VersionID:          version.ID,
		ProcessedDocuments: stats.ProcessedDocuments,
		TotalChunks:        stats.TotalChunks,
		TotalPages:         stats.TotalPages,
		OCRPages:           stats.OCRPages,
		FailedDocuments:    stats.FailedDocuments,
		DeletedVersions:    deletedVersions,
		Duration:           duration,
	}, nil
}
