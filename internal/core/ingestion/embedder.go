package ingestion

import (
	"context"
	"errors"
)

// ErrEmptyInput は空または空白のみのテキストをEmbedding対象に渡した場合のエラー。
// 空テキストのベクトルは意味を持たないため、黙ってゼロベクトルを返すのではなく
// 即座に失敗させる。
var ErrEmptyInput = errors.New("embedding input is empty")

// Embedder はテキストのEmbedding生成能力を抽象化する。
// ドキュメント側とクエリ側で前処理（プレフィックス付与）が異なるモデルに
// 対応するため、両者を別メソッドとして公開する。
type Embedder interface {
	// EmbedDocuments はインデックス対象チャンクのEmbeddingをバッチ生成する。
	// 返却ベクトル数は入力テキスト数と一致し、順序も保存される。
	// 入力のいずれかが空の場合は ErrEmptyInput を返す。
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery は検索クエリのEmbeddingを生成する。
	// 入力が空の場合は ErrEmptyInput を返す。
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelName は使用しているEmbeddingモデル名を返す
	ModelName() string

	// Dimension はEmbeddingベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize は1回のAPI呼び出しで処理できる最大テキスト数を返す
	MaxBatchSize() int
}
