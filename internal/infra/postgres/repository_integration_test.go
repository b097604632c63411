package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	"github.com/knowref/faq-rag/pkg/db"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB はpgvector入りPostgreSQLコンテナを起動して接続を返す
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	resource, err := pool.Run("pgvector/pgvector", "pg16", []string{
		"POSTGRES_USER=faqrag",
		"POSTGRES_PASSWORD=faqrag",
		"POSTGRES_DB=faqrag_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	var database *db.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var connectErr error
		database, connectErr = db.NewFromConnString(ctx, fmt.Sprintf(
			"host=localhost port=%s user=faqrag password=faqrag dbname=faqrag_test sslmode=disable",
			resource.GetPort("5432/tcp"),
		))
		return connectErr
	})
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, EnsureSchema(context.Background(), database.Pool, 3))

	return database
}

func testChunk(versionID uuid.UUID, docID string, page, ordinal int, content string) *ingestion.Chunk {
	return &ingestion.Chunk{
		ID:             uuid.New(),
		IndexVersionID: versionID,
		DocumentID:     docID,
		Ordinal:        ordinal,
		ChunkKey:       ingestion.ChunkKey(docID, page, ordinal),
		Role:           chunk.RoleQAPair,
		Content:        content,
		TokenCount:     10,
		Page:           page,
		PartIndex:      1,
		PartCount:      1,
	}
}

func TestRepository_Integration(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()

	repo := NewRepository(database.Pool)
	searchRepo := NewSearchRepository(database.Pool)

	t.Run("アクティブバージョンがない状態ではNoneが返る", func(t *testing.T) {
		opt, err := searchRepo.ActiveVersionID(ctx)
		require.NoError(t, err)
		assert.True(t, opt.IsAbsent())
	})

	version, err := repo.CreateIndexVersion(ctx, "stub-embedding", 3)
	require.NoError(t, err)

	t.Run("ドキュメントとチャンクとEmbeddingが登録できる", func(t *testing.T) {
		require.NoError(t, repo.UpsertDocument(ctx, &ingestion.DocumentRecord{
			ID:             "faq",
			IndexVersionID: version.ID,
			Path:           "faq.pdf",
			PageCount:      1,
		}))

		chunks := []*ingestion.Chunk{
			testChunk(version.ID, "faq", 1, 0, "What is 5G? Fifth generation."),
			testChunk(version.ID, "faq", 1, 1, "How fast? Over 1 Gbps."),
			testChunk(version.ID, "faq", 2, 2, "Billing is monthly."),
		}
		require.NoError(t, repo.BatchCreateChunks(ctx, chunks))

		embeddings := []*ingestion.Embedding{
			{ChunkID: chunks[0].ID, Vector: []float32{1, 0, 0}, Model: "stub-embedding", Mode: ingestion.EmbedModeDocument},
			{ChunkID: chunks[1].ID, Vector: []float32{0.9, 0.1, 0}, Model: "stub-embedding", Mode: ingestion.EmbedModeDocument},
			{ChunkID: chunks[2].ID, Vector: []float32{0, 0, 1}, Model: "stub-embedding", Mode: ingestion.EmbedModeDocument},
		}
		require.NoError(t, repo.BatchCreateEmbeddings(ctx, embeddings))
	})

	t.Run("同じチャンクキーの再登録は重複にならない", func(t *testing.T) {
		dup := testChunk(version.ID, "faq", 1, 0, "duplicate content")
		require.NoError(t, repo.BatchCreateChunks(ctx, []*ingestion.Chunk{dup}))

		var count int
		err := database.Pool.QueryRow(ctx,
			`SELECT count(*) FROM chunks WHERE index_version_id = $1 AND chunk_key = $2`,
			version.ID, dup.ChunkKey,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("アクティブ化すると検索側から見えるようになる", func(t *testing.T) {
		require.NoError(t, repo.ActivateIndexVersion(ctx, version.ID))

		opt, err := searchRepo.ActiveVersionID(ctx)
		require.NoError(t, err)
		activeID, ok := opt.Get()
		require.True(t, ok)
		assert.Equal(t, version.ID, activeID)

		activeVersion, err := repo.GetActiveIndexVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, "stub-embedding", activeVersion.MustGet().EmbeddingModel)
	})

	t.Run("検索結果は類似度降順で返る", func(t *testing.T) {
		results, err := searchRepo.SearchChunks(ctx, version.ID, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Contains(t, results[0].Content, "What is 5G?")
		assert.Contains(t, results[1].Content, "How fast?")
		assert.Greater(t, results[0].Score, results[1].Score)
		assert.Equal(t, "faq", results[0].DocumentID)
		assert.Equal(t, 1, results[0].Page)
	})

	t.Run("新バージョンのアクティブ化で旧バージョンが置き換わる", func(t *testing.T) {
		next, err := repo.CreateIndexVersion(ctx, "stub-embedding", 3)
		require.NoError(t, err)
		require.NoError(t, repo.ActivateIndexVersion(ctx, next.ID))

		opt, err := searchRepo.ActiveVersionID(ctx)
		require.NoError(t, err)
		assert.Equal(t, next.ID, opt.MustGet())

		// 旧バージョンは非アクティブとして削除対象になる
		deleted, err := repo.DeleteInactiveVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		// カスケードでチャンクも消える
		var count int
		err = database.Pool.QueryRow(ctx,
			`SELECT count(*) FROM chunks WHERE index_version_id = $1`, version.ID,
		).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("存在しないバージョンのアクティブ化はエラー", func(t *testing.T) {
		err := repo.ActivateIndexVersion(ctx, uuid.New())
		assert.Error(t, err)
	})
}
