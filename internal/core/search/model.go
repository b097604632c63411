package search

import (
	"errors"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
)

var (
	// ErrInvalidQuery はクエリが空、または k が不正な場合のエラー
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexUnavailable はインデックスストアに到達できない場合のエラー。
	// インデックスが未構築（アクティブバージョンなし）の場合は障害ではなく
	// 空の検索結果として扱われる。
	ErrIndexUnavailable = errors.New("index unavailable")
)

// ScoredChunk は類似度スコア付きの検索結果チャンク。
// 回答の出典提示に必要な来歴（ドキュメント・ページ・チャンクキー）を必ず伴う。
type ScoredChunk struct {
	ChunkID    uuid.UUID
	ChunkKey   string
	DocumentID string
	Page       int
	Ordinal    int
	Role       chunk.Role
	Content    string
	PartIndex  int
	PartCount  int
	OCRUsed    bool
	Score      float64 // コサイン類似度（大きいほど近い）
}

// RetrievalResult は1クエリ分の検索結果
type RetrievalResult struct {
	Query          string
	IndexVersionID uuid.UUID
	Chunks         []*ScoredChunk // スコア降順（同スコアはOrdinal昇順）
}
