package ingestion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
)

// EmbedMode はEmbedding生成時のモード（ドキュメント側かクエリ側か）
type EmbedMode string

const (
	// EmbedModeDocument はインデックス対象チャンクのEmbeddingモード
	EmbedModeDocument EmbedMode = "document"
	// EmbedModeQuery は検索クエリのEmbeddingモード
	EmbedModeQuery EmbedMode = "query"
)

// IndexVersion はインデックスの1バージョンを表す。
// 再構築のたびに新しいバージョンが作られ、完了時にアクティブが切り替わる。
type IndexVersion struct {
	ID             uuid.UUID
	EmbeddingModel string
	Dimension      int
	EmbedMode      EmbedMode
	Active         bool
	CreatedAt      time.Time
}

// DocumentRecord はインデックスに登録されたドキュメントのメタデータ
type DocumentRecord struct {
	ID             string // ファイル名から導出された安定識別子
	IndexVersionID uuid.UUID
	Path           string
	PageCount      int
}

// Chunk はインデックスに登録される1チャンクを表す
type Chunk struct {
	ID             uuid.UUID
	IndexVersionID uuid.UUID
	DocumentID     string
	Ordinal        int    // ドキュメント内の通し順序（0始まり）
	ChunkKey       string // 再取り込み時にも安定する決定的キー
	Role           chunk.Role
	Content        string
	TokenCount     int
	Page           int // 出典ページ番号（1始まり）
	PartIndex      int // 分割チャンクの連番（1始まり）
	PartCount      int
	OCRUsed        bool
}

// Embedding はチャンクのEmbeddingベクトルを表す
type Embedding struct {
	ChunkID uuid.UUID
	Vector  []float32
	Model   string
	Mode    EmbedMode
}

// ChunkKey はチャンクの決定的キーを生成する。
// 同一コーパスを再取り込みしても同じチャンクには同じキーが振られる。
// 形式: {document_id}:p{page}:{ordinal}
func ChunkKey(documentID string, page, ordinal int) string {
	return fmt.Sprintf("%s:p%d:%d", documentID, page, ordinal)
}
