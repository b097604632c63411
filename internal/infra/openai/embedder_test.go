package openai

import (
	"context"
	"strings"
	"testing"

	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/stretchr/testify/assert"
)

func TestEmbedder_Validation(t *testing.T) {
	embedder := NewEmbedder("test-key")

	t.Run("空のテキスト列はErrEmptyInput", func(t *testing.T) {
		_, err := embedder.EmbedDocuments(context.Background(), nil)
		assert.ErrorIs(t, err, ingestion.ErrEmptyInput)
	})

	t.Run("空白のみのテキストを含むバッチはErrEmptyInput", func(t *testing.T) {
		_, err := embedder.EmbedDocuments(context.Background(), []string{"valid text", "   "})
		assert.ErrorIs(t, err, ingestion.ErrEmptyInput)
	})

	t.Run("空白のみのクエリはErrEmptyInput", func(t *testing.T) {
		_, err := embedder.EmbedQuery(context.Background(), "\t\n ")
		assert.ErrorIs(t, err, ingestion.ErrEmptyInput)
	})

	t.Run("バッチ上限を超えるとエラー", func(t *testing.T) {
		texts := make([]string, maxBatchSize+1)
		for i := range texts {
			texts[i] = "text"
		}
		_, err := embedder.EmbedDocuments(context.Background(), texts)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ingestion.ErrEmptyInput)
		assert.True(t, strings.Contains(err.Error(), "exceeds maximum"))
	})
}

func TestEmbedder_Defaults(t *testing.T) {
	embedder := NewEmbedder("test-key")

	assert.Equal(t, DefaultEmbeddingModel, embedder.ModelName())
	assert.Equal(t, DefaultEmbeddingDimension, embedder.Dimension())
	assert.Equal(t, maxBatchSize, embedder.MaxBatchSize())
}

func TestEmbedder_Options(t *testing.T) {
	embedder := NewEmbedder("test-key",
		WithEmbeddingModel("text-embedding-3-large"),
		WithEmbeddingDimension(3072),
		WithDocumentPrefix("passage: "),
		WithQueryPrefix("query: "),
	)

	assert.Equal(t, "text-embedding-3-large", embedder.ModelName())
	assert.Equal(t, 3072, embedder.Dimension())
	assert.Equal(t, "passage: ", embedder.documentPrefix)
	assert.Equal(t, "query: ", embedder.queryPrefix)
}
