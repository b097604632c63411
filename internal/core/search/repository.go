package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository は検索側から見たインデックスストアの抽象化。
// 検索は常にアクティブバージョンに対してのみ行われる。
type Repository interface {
	// ActiveVersionID は現在アクティブなインデックスバージョンのIDを返す。
	// アクティブなバージョンが存在しない場合は None を返す。
	ActiveVersionID(ctx context.Context) (mo.Option[uuid.UUID], error)

	// SearchChunks は指定バージョン内でクエリベクトルに最も近いチャンクを
	// 最大 k 件返す。結果はコサイン類似度の降順で、同スコアの場合は
	// Ordinal の昇順で並ぶ。該当が k 件に満たない場合はある分だけ返す。
	SearchChunks(ctx context.Context, versionID uuid.UUID, vector []float32, k int) ([]*ScoredChunk, error)
}

// QueryEmbedder は検索クエリのEmbedding生成能力
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
