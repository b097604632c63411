package search

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearchRepository struct {
	versionID  mo.Option[uuid.UUID]
	versionErr error
	chunks     []*ScoredChunk
	searchErr  error
	lastK      int
}

func (r *stubSearchRepository) ActiveVersionID(context.Context) (mo.Option[uuid.UUID], error) {
	return r.versionID, r.versionErr
}

func (r *stubSearchRepository) SearchChunks(_ context.Context, _ uuid.UUID, _ []float32, k int) ([]*ScoredChunk, error) {
	r.lastK = k
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	if len(r.chunks) > k {
		return r.chunks[:k], nil
	}
	return r.chunks, nil
}

type stubQueryEmbedder struct {
	err error
}

func (e *stubQueryEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func TestService_Retrieve(t *testing.T) {
	versionID := uuid.New()

	t.Run("類似チャンクが来歴付きで返る", func(t *testing.T) {
		repo := &stubSearchRepository{
			versionID: mo.Some(versionID),
			chunks: []*ScoredChunk{
				{ChunkID: uuid.New(), ChunkKey: "faq:p1:0", DocumentID: "faq", Page: 1, Role: chunk.RoleQAPair, Score: 0.92},
				{ChunkID: uuid.New(), ChunkKey: "faq:p2:3", DocumentID: "faq", Page: 2, Role: chunk.RoleAnswer, Score: 0.85},
			},
		}
		svc := NewService(repo, &stubQueryEmbedder{}, nil)

		result, err := svc.Retrieve(context.Background(), "What is 5G?", 4)
		require.NoError(t, err)

		assert.Equal(t, versionID, result.IndexVersionID)
		require.Len(t, result.Chunks, 2)
		assert.Equal(t, "faq:p1:0", result.Chunks[0].ChunkKey)
		assert.Equal(t, 1, result.Chunks[0].Page)
		assert.Equal(t, 4, repo.lastK)
	})

	t.Run("該当チャンクが0件でも空結果として正常に返る", func(t *testing.T) {
		repo := &stubSearchRepository{versionID: mo.Some(versionID)}
		svc := NewService(repo, &stubQueryEmbedder{}, nil)

		result, err := svc.Retrieve(context.Background(), "unrelated question", 4)
		require.NoError(t, err)
		assert.Empty(t, result.Chunks)
	})

	t.Run("空白のみのクエリはErrInvalidQuery", func(t *testing.T) {
		svc := NewService(&stubSearchRepository{versionID: mo.Some(versionID)}, &stubQueryEmbedder{}, nil)

		_, err := svc.Retrieve(context.Background(), "   ", 4)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("kが0以下はErrInvalidQuery", func(t *testing.T) {
		svc := NewService(&stubSearchRepository{versionID: mo.Some(versionID)}, &stubQueryEmbedder{}, nil)

		_, err := svc.Retrieve(context.Background(), "question", 0)
		assert.ErrorIs(t, err, ErrInvalidQuery)

		_, err = svc.Retrieve(context.Background(), "question", -1)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("インデックス未構築でも空結果として正常に返る", func(t *testing.T) {
		repo := &stubSearchRepository{versionID: mo.None[uuid.UUID]()}
		svc := NewService(repo, &stubQueryEmbedder{}, nil)

		result, err := svc.Retrieve(context.Background(), "question", 4)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "question", result.Query)
		assert.Empty(t, result.Chunks)
		assert.Equal(t, uuid.Nil, result.IndexVersionID)
	})

	t.Run("ストアに到達できない場合はErrIndexUnavailable", func(t *testing.T) {
		repo := &stubSearchRepository{
			versionID: mo.Some(versionID),
			searchErr: errors.New("connection refused"),
		}
		svc := NewService(repo, &stubQueryEmbedder{}, nil)

		_, err := svc.Retrieve(context.Background(), "question", 4)
		assert.ErrorIs(t, err, ErrIndexUnavailable)
	})

	t.Run("クエリEmbedding失敗はErrIndexUnavailableにしない", func(t *testing.T) {
		repo := &stubSearchRepository{versionID: mo.Some(versionID)}
		svc := NewService(repo, &stubQueryEmbedder{err: errors.New("api error")}, nil)

		_, err := svc.Retrieve(context.Background(), "question", 4)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrIndexUnavailable)
	})
}
