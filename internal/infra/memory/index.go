package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion"
	"github.com/knowref/faq-rag/internal/core/search"
	"github.com/samber/mo"
)

// Index はインメモリのインデックス実装。
// 永続化を伴わない開発・テスト用バックエンドで、検索は全件の
// コサイン類似度を線形に計算する。
type Index struct {
	mu         sync.RWMutex
	versions   map[uuid.UUID]*ingestion.IndexVersion
	documents  map[uuid.UUID]map[string]*ingestion.DocumentRecord
	chunks     map[uuid.UUID]map[string]*ingestion.Chunk // versionID -> chunkKey -> chunk
	embeddings map[uuid.UUID]*ingestion.Embedding        // chunkID -> embedding
	activeID   mo.Option[uuid.UUID]
}

// NewIndex は新しい Index を作成する
func NewIndex() *Index {
	return &Index{
		versions:   make(map[uuid.UUID]*ingestion.IndexVersion),
		documents:  make(map[uuid.UUID]map[string]*ingestion.DocumentRecord),
		chunks:     make(map[uuid.UUID]map[string]*ingestion.Chunk),
		embeddings: make(map[uuid.UUID]*ingestion.Embedding),
		activeID:   mo.None[uuid.UUID](),
	}
}

// CreateIndexVersion は非アクティブな新しいインデックスバージョンを作成する
func (m *Index) CreateIndexVersion(_ context.Context, embeddingModel string, dimension int) (*ingestion.IndexVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version := &ingestion.IndexVersion{
		ID:             uuid.New(),
		EmbeddingModel: embeddingModel,
		Dimension:      dimension,
		CreatedAt:      time.Now(),
	}
	m.versions[version.ID] = version
	m.documents[version.ID] = make(map[string]*ingestion.DocumentRecord)
	m.chunks[version.ID] = make(map[string]*ingestion.Chunk)

	return version, nil
}

// GetActiveIndexVersion は現在アクティブなバージョンを返す
func (m *Index) GetActiveIndexVersion(_ context.Context) (mo.Option[*ingestion.IndexVersion], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.activeID.Get()
	if !ok {
		return mo.None[*ingestion.IndexVersion](), nil
	}
	return mo.Some(m.versions[id]), nil
}

// UpsertDocument はドキュメントのメタデータを登録する
func (m *Index) UpsertDocument(_ context.Context, doc *ingestion.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.documents[doc.IndexVersionID]
	if !ok {
		return fmt.Errorf("index version not found: %s", doc.IndexVersionID)
	}
	docs[doc.ID] = doc
	return nil
}

// BatchCreateChunks はチャンクをバッチ登録する。
// 同一チャンクキーの再登録は無視される。
func (m *Index) BatchCreateChunks(_ context.Context, chunks []*ingestion.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range chunks {
		byKey, ok := m.chunks[chunk.IndexVersionID]
		if !ok {
			return fmt.Errorf("index version not found: %s", chunk.IndexVersionID)
		}
		if _, exists := byKey[chunk.ChunkKey]; exists {
			continue
		}
		byKey[chunk.ChunkKey] = chunk
	}
	return nil
}

// BatchCreateEmbeddings はEmbeddingをバッチ登録する
func (m *Index) BatchCreateEmbeddings(_ context.Context, embeddings []*ingestion.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, embedding := range embeddings {
		m.embeddings[embedding.ChunkID] = embedding
	}
	return nil
}

// ActivateIndexVersion は指定バージョンをアクティブにする
func (m *Index) ActivateIndexVersion(_ context.Context, versionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	version, ok := m.versions[versionID]
	if !ok {
		return fmt.Errorf("index version not found: %s", versionID)
	}

	if prevID, ok := m.activeID.Get(); ok {
		if prev := m.versions[prevID]; prev != nil {
			prev.Active = false
		}
	}
	version.Active = true
	m.activeID = mo.Some(versionID)
	return nil
}

// DeleteInactiveVersions は非アクティブなバージョンを配下ごと削除する
func (m *Index) DeleteInactiveVersions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, version := range m.versions {
		if version.Active {
			continue
		}
		for _, chunk := range m.chunks[id] {
			delete(m.embeddings, chunk.ID)
		}
		delete(m.chunks, id)
		delete(m.documents, id)
		delete(m.versions, id)
		deleted++
	}
	return deleted, nil
}

// ActiveVersionID は現在アクティブなインデックスバージョンのIDを返す
func (m *Index) ActiveVersionID(_ context.Context) (mo.Option[uuid.UUID], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID, nil
}

// SearchChunks は指定バージョン内でクエリベクトルに最も近いチャンクを返す。
// 全チャンクのコサイン類似度を計算し、降順（同スコアはOrdinal昇順）で
// 最大 k 件を返す。
func (m *Index) SearchChunks(
	_ context.Context,
	versionID uuid.UUID,
	vector []float32,
	k int,
) ([]*search.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKey, ok := m.chunks[versionID]
	if !ok {
		return nil, fmt.Errorf("index version not found: %s", versionID)
	}

	var results []*search.ScoredChunk
	for _, chunk := range byKey {
		embedding, ok := m.embeddings[chunk.ID]
		if !ok {
			continue
		}
		results = append(results, &search.ScoredChunk{
			ChunkID:    chunk.ID,
			ChunkKey:   chunk.ChunkKey,
			DocumentID: chunk.DocumentID,
			Page:       chunk.Page,
			Ordinal:    chunk.Ordinal,
			Role:       chunk.Role,
			Content:    chunk.Content,
			PartIndex:  chunk.PartIndex,
			PartCount:  chunk.PartCount,
			OCRUsed:    chunk.OCRUsed,
			Score:      cosineSimilarity(vector, embedding.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// cosineSimilarity は2ベクトルのコサイン類似度を計算する
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// インターフェース実装の確認
var (
	_ ingestion.Repository = (*Index)(nil)
	_ search.Repository    = (*Index)(nil)
)
