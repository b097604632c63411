package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	"github.com/knowref/faq-rag/internal/core/search"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/mo"
)

// SearchRepository はpgvectorによる類似チャンク検索実装
type SearchRepository struct {
	pool *pgxpool.Pool
}

// NewSearchRepository は新しい SearchRepository を作成する
func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

// ActiveVersionID は現在アクティブなインデックスバージョンのIDを返す
func (r *SearchRepository) ActiveVersionID(ctx context.Context) (mo.Option[uuid.UUID], error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM index_versions WHERE active`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[uuid.UUID](), nil
		}
		return mo.None[uuid.UUID](), fmt.Errorf("failed to get active version: %w", err)
	}
	return mo.Some(id), nil
}

// SearchChunks は指定バージョン内でクエリベクトルに最も近いチャンクを返す。
// コサイン距離演算子（<=>）を使用し、スコアは 1 - 距離 の類似度として返す。
// 同スコアのチャンクはOrdinal昇順で安定に並ぶ。
func (r *SearchRepository) SearchChunks(
	ctx context.Context,
	versionID uuid.UUID,
	vector []float32,
	k int,
) ([]*search.ScoredChunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.chunk_key, c.document_id, c.page, c.ordinal, c.role, c.content,
		        c.part_index, c.part_count, c.ocr_used,
		        1 - (e.vector <=> $2) AS score
		 FROM chunks c
		 JOIN embeddings e ON e.chunk_id = c.id
		 WHERE c.index_version_id = $1
		 ORDER BY e.vector <=> $2 ASC, c.ordinal ASC
		 LIMIT $3`,
		versionID, pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []*search.ScoredChunk
	for rows.Next() {
		sc := &search.ScoredChunk{}
		var role string
		if err := rows.Scan(
			&sc.ChunkID, &sc.ChunkKey, &sc.DocumentID, &sc.Page, &sc.Ordinal, &role,
			&sc.Content, &sc.PartIndex, &sc.PartCount, &sc.OCRUsed, &sc.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		sc.Role = chunk.Role(role)
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}

	return results, nil
}

// インターフェース実装の確認
var _ search.Repository = (*SearchRepository)(nil)
