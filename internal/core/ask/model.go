package ask

// AskParams は質問応答のパラメータ
type AskParams struct {
	// Query はユーザーの質問
	Query string
	// K は取得するコンテキストチャンク数（0以下でデフォルト値）
	K int
}

// SourceReference は回答の根拠となったチャンクの来歴
type SourceReference struct {
	DocumentID string
	Page       int
	ChunkKey   string
	Score      float64
}

// AskResult は質問応答の結果
type AskResult struct {
	Answer  string
	Sources []SourceReference
}
