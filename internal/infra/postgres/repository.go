package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/knowref/faq-rag/pkg/lock"
	"github.com/pgvector/pgvector-go"
	"github.com/samber/mo"
)

// Repository はPostgreSQL + pgvectorによるインデックス永続化実装
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は新しい Repository を作成する
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateIndexVersion は非アクティブな新しいインデックスバージョンを作成する
func (r *Repository) CreateIndexVersion(ctx context.Context, embeddingModel string, dimension int) (*ingestion.IndexVersion, error) {
	version := &ingestion.IndexVersion{
		ID:             uuid.New(),
		EmbeddingModel: embeddingModel,
		Dimension:      dimension,
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO index_versions (id, embedding_model, dimension, active)
		 VALUES ($1, $2, $3, FALSE)
		 RETURNING created_at`,
		version.ID, embeddingModel, dimension,
	).Scan(&version.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create index version: %w", err)
	}

	return version, nil
}

// GetActiveIndexVersion は現在アクティブなバージョンを返す
func (r *Repository) GetActiveIndexVersion(ctx context.Context) (mo.Option[*ingestion.IndexVersion], error) {
	version := &ingestion.IndexVersion{Active: true}

	err := r.pool.QueryRow(ctx,
		`SELECT id, embedding_model, dimension, created_at
		 FROM index_versions
		 WHERE active`,
	).Scan(&version.ID, &version.EmbeddingModel, &version.Dimension, &version.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*ingestion.IndexVersion](), nil
		}
		return mo.None[*ingestion.IndexVersion](), fmt.Errorf("failed to get active index version: %w", err)
	}

	return mo.Some(version), nil
}

// UpsertDocument はドキュメントのメタデータを登録する
func (r *Repository) UpsertDocument(ctx context.Context, doc *ingestion.DocumentRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, index_version_id, path, page_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (index_version_id, id)
		 DO UPDATE SET path = EXCLUDED.path, page_count = EXCLUDED.page_count`,
		doc.ID, doc.IndexVersionID, doc.Path, doc.PageCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// BatchCreateChunks はチャンクをバッチ登録する
func (r *Repository) BatchCreateChunks(ctx context.Context, chunks []*ingestion.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(
			`INSERT INTO chunks (id, index_version_id, document_id, ordinal, chunk_key,
			                     role, content, token_count, page, part_index, part_count, ocr_used)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (index_version_id, chunk_key) DO NOTHING`,
			chunk.ID, chunk.IndexVersionID, chunk.DocumentID, chunk.Ordinal, chunk.ChunkKey,
			string(chunk.Role), chunk.Content, chunk.TokenCount, chunk.Page,
			chunk.PartIndex, chunk.PartCount, chunk.OCRUsed,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to batch create chunks: %w", err)
		}
	}
	return nil
}

// BatchCreateEmbeddings はEmbeddingをバッチ登録する
func (r *Repository) BatchCreateEmbeddings(ctx context.Context, embeddings []*ingestion.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, embedding := range embeddings {
		batch.Queue(
			`INSERT INTO embeddings (chunk_id, vector, model, mode)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (chunk_id)
			 DO UPDATE SET vector = EXCLUDED.vector, model = EXCLUDED.model, mode = EXCLUDED.mode`,
			embedding.ChunkID, pgvector.NewVector(embedding.Vector),
			embedding.Model, string(embedding.Mode),
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range embeddings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to batch create embeddings: %w", err)
		}
	}
	return nil
}

// ActivateIndexVersion は指定バージョンをアクティブにする。
// 旧アクティブの解除と新バージョンの有効化を単一トランザクションで行い、
// 同時実行される再構築とはアドバイザリロックで直列化する。
func (r *Repository) ActivateIndexVersion(ctx context.Context, versionID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lock.Acquire(ctx, tx, lock.GenerateLockID("index_versions", "activate")); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE index_versions SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE index_versions SET active = TRUE WHERE id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("failed to activate index version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("index version not found: %s", versionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

// DeleteInactiveVersions は非アクティブなバージョンを配下ごと削除する
func (r *Repository) DeleteInactiveVersions(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM index_versions WHERE NOT active`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive versions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// インターフェース実装の確認
var _ ingestion.Repository = (*Repository)(nil)
