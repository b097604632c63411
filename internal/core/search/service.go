package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultK は k 未指定時のデフォルト取得件数
const DefaultK = 4

// Service は類似チャンク検索のユースケースを提供する
type Service struct {
	repository Repository
	embedder   QueryEmbedder
	logger     *slog.Logger
}

// NewService は新しいServiceを作成する
func NewService(repository Repository, embedder QueryEmbedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repository,
		embedder:   embedder,
		logger:     logger,
	}
}

// Retrieve はクエリに類似するチャンクを最大 k 件取得する。
// k <= 0 または空白のみのクエリは ErrInvalidQuery を返す。
// アクティブなインデックスが存在しない（まだ1度も構築されていない）場合は
// 該当0件と同じく空の結果を正常系として返す。ErrIndexUnavailable は
// ストアに到達できない障害時のみ返される。
func (s *Service) Retrieve(ctx context.Context, query string, k int) (*RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is blank", ErrInvalidQuery)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, k)
	}

	versionOpt, err := s.repository.ActiveVersionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	versionID, ok := versionOpt.Get()
	if !ok {
		s.logger.Debug("アクティブなインデックスが存在しないため空結果を返却", "query", query)
		return &RetrievalResult{Query: query}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := s.repository.SearchChunks(ctx, versionID, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	s.logger.Debug("検索が完了",
		"query", query,
		"k", k,
		"hits", len(chunks),
		"versionID", versionID,
	)

	return &RetrievalResult{
		Query:          query,
		IndexVersionID: versionID,
		Chunks:         chunks,
	}, nil
}
