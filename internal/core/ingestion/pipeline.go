package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/extract"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
)

const (
	// DefaultDocumentWorkerCount はデフォルトのドキュメント処理ワーカー数（抽出・OCRバウンド）
	DefaultDocumentWorkerCount = 4
	// DefaultEmbeddingWorkerCount はデフォルトのEmbeddingワーカー数（I/O バウンド）
	DefaultEmbeddingWorkerCount = 8
	// DefaultEmbeddingBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultEmbeddingBatchSize = 100
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

// PipelineConfig はパイプライン処理の設定
type PipelineConfig struct {
	// DocumentWorkerCount はドキュメント処理ワーカー数（抽出・チャンク分割用）
	DocumentWorkerCount int
	// EmbeddingWorkerCount はEmbedding生成ワーカー数（I/O バウンド処理用）
	EmbeddingWorkerCount int
	// EmbeddingBatchSize はEmbeddingバッチサイズ（Embedder.MaxBatchSize()でクリップされる）
	EmbeddingBatchSize int
	// FailOnEmbeddingError はEmbeddingエラー時にパイプラインを停止するかどうか
	FailOnEmbeddingError bool
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		DocumentWorkerCount:  DefaultDocumentWorkerCount,
		EmbeddingWorkerCount: DefaultEmbeddingWorkerCount,
		EmbeddingBatchSize:   DefaultEmbeddingBatchSize,
		FailOnEmbeddingError: false,
	}
}

// PipelineStats はパイプライン処理の統計情報
type PipelineStats struct {
	ProcessedDocuments  int // 正常に処理されたドキュメント数
	TotalChunks         int // 正常に登録されたチャンク数
	TotalPages          int // 処理されたページ数
	OCRPages            int // OCRで抽出されたページ数
	FailedDocuments     int // 失敗したドキュメント数
	FailedEmbeddings    int // Embedding生成/保存失敗数
	EmbeddingMismatches int // ベクトル数不一致の回数
}

// DocumentLoader はコーパス内の1ファイルをページ抽出済みのDocumentに変換する
type DocumentLoader interface {
	LoadDocument(ctx context.Context, path string) (*extract.Document, error)
}

// Chunker はページ列をチャンク列に変換する
type Chunker interface {
	ChunkDocument(pages []extract.Page) []*chunk.Chunk
}

// documentResult はドキュメント処理の結果
type documentResult struct {
	Path       string
	ChunkCount int
	PageCount  int
	OCRPages   int
	Err        error
}

// IndexPipeline はコーパスのインデックス化をステージパイプラインで実行する。
// Stage 1 でファイルパスを投入し、Stage 2 のドキュメントワーカーが
// 抽出・チャンク分割・チャンク登録を行い、Stage 3 のEmbeddingワーカーが
// バッチでEmbeddingを生成・保存する。
type IndexPipeline struct {
	repository Repository
	loader     DocumentLoader
	chunker    Chunker
	embedder   Embedder
	config     *PipelineConfig
	logger     *slog.Logger

	// 実際に使用するバッチサイズ（Embedder.MaxBatchSize()でクリップ済み）
	effectiveBatchSize int
}

// NewIndexPipeline は新しいIndexPipelineを作成する
func NewIndexPipeline(
	repository Repository,
	loader DocumentLoader,
	chunker Chunker,
	embedder Embedder,
	config *PipelineConfig,
	logger *slog.Logger,
) *IndexPipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// バッチサイズをEmbedderの最大値でクリップ
	effectiveBatchSize := config.EmbeddingBatchSize
	maxBatchSize := embedder.MaxBatchSize()
	if maxBatchSize <= 0 {
		logger.Warn("Embedder.MaxBatchSize()が無効な値を返しました。フォールバック値を使用します",
			"returned", maxBatchSize,
			"fallback", MinBatchSize,
		)
		maxBatchSize = MinBatchSize
	}
	if effectiveBatchSize > maxBatchSize {
		logger.Info("EmbeddingBatchSizeをEmbedderの最大値でクリップ",
			"configured", effectiveBatchSize,
			"max", maxBatchSize,
		)
		effectiveBatchSize = maxBatchSize
	}
	if effectiveBatchSize <= 0 {
		effectiveBatchSize = MinBatchSize
	}

	return &IndexPipeline{
		repository:         repository,
		loader:             loader,
		chunker:            chunker,
		embedder:           embedder,
		config:             config,
		logger:             logger,
		effectiveBatchSize: effectiveBatchSize,
	}
}

// ProcessCorpus はコーパスのファイル群を指定バージョンへインデックス化する
func (p *IndexPipeline) ProcessCorpus(
	ctx context.Context,
	versionID uuid.UUID,
	paths []string,
) (*PipelineStats, error) {
	// Stage 1: ファイルパスチャネル（入力）
	pathChan := make(chan string, len(paths))

	// Stage 2: チャンクチャネル（Embedding生成用）
	chunkChan := make(chan *Chunk, p.config.EmbeddingWorkerCount*p.effectiveBatchSize)

	// 結果チャネル
	resultChan := make(chan *documentResult, len(paths))

	// エラー追跡用
	var pipelineErr atomic.Value
	var failedEmbeddings atomic.Int64
	var embeddingMismatches atomic.Int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stage 1: ファイルパスをチャネルに投入
	go func() {
		defer close(pathChan)
		for _, path := range paths {
			select {
			case pathChan <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Stage 2: ドキュメントワーカー（抽出→チャンク分割→チャンク登録）
	var docWg sync.WaitGroup
	docWg.Add(p.config.DocumentWorkerCount)
	for i := 0; i < p.config.DocumentWorkerCount; i++ {
		go func() {
			defer docWg.Done()
			p.documentWorker(ctx, versionID, pathChan, chunkChan, resultChan)
		}()
	}

	// ドキュメント処理完了を待ってチャンクチャネルを閉じる
	go func() {
		docWg.Wait()
		close(chunkChan)
	}()

	// Stage 3: Embedding生成・保存ワーカー
	var embeddingWg sync.WaitGroup
	embeddingWg.Add(p.config.EmbeddingWorkerCount)
	for i := 0; i < p.config.EmbeddingWorkerCount; i++ {
		go func() {
			defer embeddingWg.Done()
			p.embeddingWorker(ctx, cancel, chunkChan, &pipelineErr, &failedEmbeddings, &embeddingMismatches)
		}()
	}

	// Embedding完了を待って結果チャネルを閉じる
	go func() {
		embeddingWg.Wait()
		close(resultChan)
	}()

	// 結果集計
	stats := &PipelineStats{}
	for result := range resultChan {
		if result.Err != nil {
			p.logger.Warn("ドキュメントのインデックス化に失敗",
				"path", result.Path,
				"error", result.Err,
			)
			stats.FailedDocuments++
			continue
		}
		stats.ProcessedDocuments++
		stats.TotalChunks += result.ChunkCount
		stats.TotalPages += result.PageCount
		stats.OCRPages += result.OCRPages
	}

	stats.FailedEmbeddings = int(failedEmbeddings.Load())
	stats.EmbeddingMismatches = int(embeddingMismatches.Load())

	// 致命的エラーがあった場合
	if errVal := pipelineErr.Load(); errVal != nil {
		if pipeErr, ok := errVal.(error); ok {
			return stats, fmt.Errorf("パイプライン処理中に致命的エラー: %w", pipeErr)
		}
	}

	if stats.FailedDocuments > 0 || stats.FailedEmbeddings > 0 || stats.EmbeddingMismatches > 0 {
		p.logger.Warn("パイプライン処理完了（一部失敗あり）",
			"processedDocuments", stats.ProcessedDocuments,
			"totalChunks", stats.TotalChunks,
			"failedDocuments", stats.FailedDocuments,
			"failedEmbeddings", stats.FailedEmbeddings,
			"embeddingMismatches", stats.EmbeddingMismatches,
		)
	}

	return stats, nil
}

// documentWorker はファイルを抽出・チャンク分割し、チャンクを登録するワーカー
func (p *IndexPipeline) documentWorker(
	ctx context.Context,
	versionID uuid.UUID,
	pathChan <-chan string,
	chunkChan chan<- *Chunk,
	resultChan chan<- *documentResult,
) {
	for path := range pathChan {
		select {
		case <-ctx.Done():
			return
		default:
		}

		doc, err := p.loader.LoadDocument(ctx, path)
		if err != nil {
			select {
			case resultChan <- &documentResult{Path: path, Err: err}:
			case <-ctx.Done():
			}
			continue
		}

		ocrPages := 0
		ocrByPage := make(map[int]bool, len(doc.Pages))
		for _, page := range doc.Pages {
			ocrByPage[page.Number] = page.OCRUsed
			if page.OCRUsed {
				ocrPages++
			}
		}

		results := p.chunker.ChunkDocument(doc.Pages)

		chunks := make([]*Chunk, 0, len(results))
		for i, result := range results {
			chunks = append(chunks, &Chunk{
				ID:             uuid.New(),
				IndexVersionID: versionID,
				DocumentID:     doc.ID,
				Ordinal:        i,
				ChunkKey:       ChunkKey(doc.ID, result.Page, i),
				Role:           result.Role,
				Content:        result.Content,
				TokenCount:     result.Tokens,
				Page:           result.Page,
				PartIndex:      result.PartIndex,
				PartCount:      result.PartCount,
				OCRUsed:        ocrByPage[result.Page],
			})
		}

		if err := p.repository.UpsertDocument(ctx, &DocumentRecord{
			ID:             doc.ID,
			IndexVersionID: versionID,
			Path:           doc.Path,
			PageCount:      len(doc.Pages),
		}); err != nil {
			select {
			case resultChan <- &documentResult{Path: path, Err: fmt.Errorf("failed to upsert document: %w", err)}:
			case <-ctx.Done():
			}
			continue
		}

		if err := p.repository.BatchCreateChunks(ctx, chunks); err != nil {
			select {
			case resultChan <- &documentResult{Path: path, Err: fmt.Errorf("failed to create chunks: %w", err)}:
			case <-ctx.Done():
			}
			continue
		}

		// 登録済みチャンクをEmbeddingステージへ送る
		for _, ch := range chunks {
			select {
			case chunkChan <- ch:
			case <-ctx.Done():
				return
			}
		}

		select {
		case resultChan <- &documentResult{
			Path:       path,
			ChunkCount: len(chunks),
			PageCount:  len(doc.Pages),
			OCRPages:   ocrPages,
		}:
		case <-ctx.Done():
			return
		}
	}
}

// embeddingWorker はバッチのEmbeddingを生成して保存するワーカー
func (p *IndexPipeline) embeddingWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	chunkChan <-chan *Chunk,
	pipelineErr *atomic.Value,
	failedEmbeddings *atomic.Int64,
	embeddingMismatches *atomic.Int64,
) {
	pendingItems := make([]*Chunk, 0, p.effectiveBatchSize)

	processBatch := func() bool {
		if len(pendingItems) == 0 {
			return true
		}

		texts := make([]string, 0, len(pendingItems))
		for _, it := range pendingItems {
			texts = append(texts, it.Content)
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			p.logger.Error("バッチEmbedding生成に失敗",
				"batchSize", len(texts),
				"error", err,
			)
			failedEmbeddings.Add(int64(len(pendingItems)))

			if p.config.FailOnEmbeddingError {
				pipelineErr.Store(fmt.Errorf("embedding生成失敗: %w", err))
				cancel()
				return false
			}
			pendingItems = pendingItems[:0]
			return true
		}

		if len(vectors) != len(pendingItems) {
			p.logger.Error("Embeddingベクトル数が不一致",
				"expected", len(pendingItems),
				"actual", len(vectors),
			)
			embeddingMismatches.Add(1)

			diff := len(vectors) - len(pendingItems)
			if diff < 0 {
				diff = -diff
			}
			failedEmbeddings.Add(int64(diff))

			if p.config.FailOnEmbeddingError {
				pipelineErr.Store(errors.New("Embeddingベクトル数が入力と一致しません"))
				cancel()
				return false
			}
		}

		limit := min(len(vectors), len(pendingItems))
		embeddings := make([]*Embedding, 0, limit)
		for i := range limit {
			embeddings = append(embeddings, &Embedding{
				ChunkID: pendingItems[i].ID,
				Vector:  vectors[i],
				Model:   p.embedder.ModelName(),
				Mode:    EmbedModeDocument,
			})
		}

		if err := p.repository.BatchCreateEmbeddings(ctx, embeddings); err != nil {
			p.logger.Error("バッチembedding保存に失敗",
				"count", len(embeddings),
				"error", err,
			)
			failedEmbeddings.Add(int64(len(embeddings)))

			if p.config.FailOnEmbeddingError {
				pipelineErr.Store(fmt.Errorf("embedding保存失敗: %w", err))
				cancel()
				return false
			}
		}

		pendingItems = pendingItems[:0]
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-chunkChan:
			if !ok {
				processBatch()
				return
			}

			pendingItems = append(pendingItems, item)

			if len(pendingItems) >= p.effectiveBatchSize {
				if !processBatch() {
					return
				}
			}
		}
	}
}
