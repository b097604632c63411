package ingestion

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はインデックスの永続化を抽象化する。
// 再構築は新しいバージョンへの書き込みとして行われ、完了時に
// ActivateIndexVersion でアトミックにアクティブバージョンが切り替わる。
// 検索側は常にアクティブバージョンのみを参照するため、再構築中も
// 古いインデックスが利用可能なまま保たれる。
type Repository interface {
	// CreateIndexVersion は非アクティブな新しいインデックスバージョンを作成する
	CreateIndexVersion(ctx context.Context, embeddingModel string, dimension int) (*IndexVersion, error)

	// GetActiveIndexVersion は現在アクティブなバージョンを返す。
	// アクティブなバージョンが存在しない場合は None を返す。
	GetActiveIndexVersion(ctx context.Context) (mo.Option[*IndexVersion], error)

	// UpsertDocument はドキュメントのメタデータを登録する
	UpsertDocument(ctx context.Context, doc *DocumentRecord) error

	// BatchCreateChunks はチャンクをバッチ登録する
	BatchCreateChunks(ctx context.Context, chunks []*Chunk) error

	// BatchCreateEmbeddings はEmbeddingをバッチ登録する
	BatchCreateEmbeddings(ctx context.Context, embeddings []*Embedding) error

	// ActivateIndexVersion は指定バージョンをアクティブにし、
	// 以前のアクティブバージョンを非アクティブにする。両者は単一の
	// トランザクションで切り替わる。
	ActivateIndexVersion(ctx context.Context, versionID uuid.UUID) error

	// DeleteInactiveVersions は非アクティブなバージョンとその配下の
	// ドキュメント・チャンク・Embeddingを削除し、削除数を返す
	DeleteInactiveVersions(ctx context.Context) (int, error)
}
