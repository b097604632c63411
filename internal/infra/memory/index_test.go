package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChunk(versionID uuid.UUID, docID string, page, ordinal int, content string) *ingestion.Chunk {
	return &ingestion.Chunk{
		ID:             uuid.New(),
		IndexVersionID: versionID,
		DocumentID:     docID,
		Ordinal:        ordinal,
		ChunkKey:       ingestion.ChunkKey(docID, page, ordinal),
		Role:           chunk.RoleQAPair,
		Content:        content,
		Page:           page,
		PartIndex:      1,
		PartCount:      1,
	}
}

func TestIndex_Lifecycle(t *testing.T) {
	ctx := context.Background()
	index := NewIndex()

	t.Run("初期状態ではアクティブバージョンがない", func(t *testing.T) {
		opt, err := index.ActiveVersionID(ctx)
		require.NoError(t, err)
		assert.True(t, opt.IsAbsent())
	})

	version, err := index.CreateIndexVersion(ctx, "stub-embedding", 3)
	require.NoError(t, err)

	chunks := []*ingestion.Chunk{
		seedChunk(version.ID, "faq", 1, 0, "chunk about coverage"),
		seedChunk(version.ID, "faq", 1, 1, "chunk about billing"),
	}
	require.NoError(t, index.UpsertDocument(ctx, &ingestion.DocumentRecord{
		ID: "faq", IndexVersionID: version.ID, Path: "faq.pdf", PageCount: 1,
	}))
	require.NoError(t, index.BatchCreateChunks(ctx, chunks))
	require.NoError(t, index.BatchCreateEmbeddings(ctx, []*ingestion.Embedding{
		{ChunkID: chunks[0].ID, Vector: []float32{1, 0, 0}, Model: "stub-embedding", Mode: ingestion.EmbedModeDocument},
		{ChunkID: chunks[1].ID, Vector: []float32{0, 1, 0}, Model: "stub-embedding", Mode: ingestion.EmbedModeDocument},
	}))

	t.Run("アクティブ化後に類似度降順で検索できる", func(t *testing.T) {
		require.NoError(t, index.ActivateIndexVersion(ctx, version.ID))

		results, err := index.SearchChunks(ctx, version.ID, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk about coverage", results[0].Content)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("kが件数を超えてもある分だけ返る", func(t *testing.T) {
		results, err := index.SearchChunks(ctx, version.ID, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("同じチャンクキーの再登録は無視される", func(t *testing.T) {
		dup := seedChunk(version.ID, "faq", 1, 0, "replaced content")
		require.NoError(t, index.BatchCreateChunks(ctx, []*ingestion.Chunk{dup}))

		results, err := index.SearchChunks(ctx, version.ID, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("新バージョンのアクティブ化で切り替わり旧バージョンが削除できる", func(t *testing.T) {
		next, err := index.CreateIndexVersion(ctx, "stub-embedding", 3)
		require.NoError(t, err)
		require.NoError(t, index.ActivateIndexVersion(ctx, next.ID))

		opt, err := index.ActiveVersionID(ctx)
		require.NoError(t, err)
		assert.Equal(t, next.ID, opt.MustGet())

		deleted, err := index.DeleteInactiveVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = index.SearchChunks(ctx, version.ID, []float32{1, 0, 0}, 1)
		assert.Error(t, err)
	})

	t.Run("存在しないバージョンのアクティブ化はエラー", func(t *testing.T) {
		assert.Error(t, index.ActivateIndexVersion(ctx, uuid.New()))
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 次元不一致やゼロベクトルは0
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
