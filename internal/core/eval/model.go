package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// Query は評価用の1クエリと正解データ
type Query struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	// RelevantChunkKeys はチャンク単位の正解（チャンクキー）
	RelevantChunkKeys []string `json:"relevant_chunk_keys,omitempty"`
	// RelevantDocuments はドキュメント単位の正解（ドキュメントID）
	RelevantDocuments []string `json:"relevant_documents,omitempty"`
}

// QueryRecord は1クエリ分の評価結果
type QueryRecord struct {
	QueryID        string  `json:"query_id"`
	Query          string  `json:"query"`
	Retrieved      int     `json:"retrieved"`
	RelevantHits   int     `json:"relevant_hits"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	ReciprocalRank float64 `json:"reciprocal_rank"`
	// Excluded は正解データを持たないため集計から除外されたかどうか
	Excluded bool   `json:"excluded"`
	Err      string `json:"error,omitempty"`
}

// Report は評価セット全体の集計結果
type Report struct {
	K                int           `json:"k"`
	TotalQueries     int           `json:"total_queries"`
	EvaluatedQueries int           `json:"evaluated_queries"`
	SkippedQueries   int           `json:"skipped_queries"`
	FailedQueries    int           `json:"failed_queries"`
	MeanPrecision    float64       `json:"mean_precision"`
	MeanRecall       float64       `json:"mean_recall"`
	MRR              float64       `json:"mrr"`
	Records          []QueryRecord `json:"records"`
}

// LoadQueries は評価クエリセットをJSONファイルから読み込む
func LoadQueries(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file: %w", err)
	}

	var queries []Query
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse queries file: %w", err)
	}

	for i, q := range queries {
		if q.Query == "" {
			return nil, fmt.Errorf("query at index %d has empty query text", i)
		}
	}

	return queries, nil
}
