package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// maxBatchSize はOpenAI Embedding APIの1リクエスト最大テキスト数
	maxBatchSize = 100
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する。
// 非対称Embeddingモデルに対応するため、ドキュメント側とクエリ側で
// 異なるプレフィックスを前置できる。
type Embedder struct {
	client         openai.Client
	model          string
	dimension      int
	documentPrefix string
	queryPrefix    string
}

type embedderOptions struct {
	model          string
	dimension      int
	documentPrefix string
	queryPrefix    string
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithDocumentPrefix はドキュメント側Embeddingのプレフィックスを設定する
func WithDocumentPrefix(prefix string) EmbedderOption {
	return func(o *embedderOptions) {
		o.documentPrefix = prefix
	}
}

// WithQueryPrefix はクエリ側Embeddingのプレフィックスを設定する
func WithQueryPrefix(prefix string) EmbedderOption {
	return func(o *embedderOptions) {
		o.queryPrefix = prefix
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Embedder{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:          options.model,
		dimension:      options.dimension,
		documentPrefix: options.documentPrefix,
		queryPrefix:    options.queryPrefix,
	}
}

// EmbedDocuments はインデックス対象チャンクのEmbeddingをバッチ生成する
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", ingestion.ErrEmptyInput)
	}
	if len(texts) > maxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), maxBatchSize)
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d is blank", ingestion.ErrEmptyInput, i)
		}
		inputs[i] = e.documentPrefix + text
	}

	return e.embed(ctx, inputs)
}

// EmbedQuery は検索クエリのEmbeddingを生成する
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query is blank", ingestion.ErrEmptyInput)
	}

	vectors, err := e.embed(ctx, []string{e.queryPrefix + text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return vectors[0], nil
}

// embed はOpenAI Embedding APIを呼び出す
func (e *Embedder) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(inputs) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(inputs[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", len(inputs), len(resp.Data))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vector[j] = float32(v)
		}
		embeddings[i] = vector
	}

	return embeddings, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す（OpenAI APIは最大100件）
func (e *Embedder) MaxBatchSize() int {
	return maxBatchSize
}

// インターフェース実装の確認
var _ ingestion.Embedder = (*Embedder)(nil)
