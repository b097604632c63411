package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowref/faq-rag/internal/core/search"
)

// Retriever は評価対象の検索能力
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*search.RetrievalResult, error)
}

// Evaluator は検索品質の評価を実行する。
// 各クエリに対して Precision@k / Recall@k / Reciprocal Rank を計算し、
// セット全体のマクロ平均と MRR を集計する。
type Evaluator struct {
	retriever Retriever
	logger    *slog.Logger
}

// NewEvaluator は新しいEvaluatorを作成する
func NewEvaluator(retriever Retriever, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		retriever: retriever,
		logger:    logger,
	}
}

// Run は評価セット全体を実行してレポートを返す。
// 正解データを持たないクエリは実行されるが集計からは除外される
// （レコードには Excluded として残る）。
func (e *Evaluator) Run(ctx context.Context, queries []Query, k int) (*Report, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries to evaluate")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	report := &Report{
		K:            k,
		TotalQueries: len(queries),
		Records:      make([]QueryRecord, 0, len(queries)),
	}

	var sumPrecision, sumRecall, sumRR float64

	for _, query := range queries {
		record := e.evaluateQuery(ctx, query, k)
		report.Records = append(report.Records, record)

		if record.Err != "" {
			report.FailedQueries++
			continue
		}
		if record.Excluded {
			report.SkippedQueries++
			continue
		}

		report.EvaluatedQueries++
		sumPrecision += record.Precision
		sumRecall += record.Recall
		sumRR += record.ReciprocalRank
	}

	if report.EvaluatedQueries > 0 {
		report.MeanPrecision = sumPrecision / float64(report.EvaluatedQueries)
		report.MeanRecall = sumRecall / float64(report.EvaluatedQueries)
		report.MRR = sumRR / float64(report.EvaluatedQueries)
	}

	e.logger.Info("評価が完了",
		"totalQueries", report.TotalQueries,
		"evaluated", report.EvaluatedQueries,
		"skipped", report.SkippedQueries,
		"failed", report.FailedQueries,
		"meanPrecision", report.MeanPrecision,
		"meanRecall", report.MeanRecall,
		"mrr", report.MRR,
	)

	return report, nil
}

// evaluateQuery は1クエリ分の検索を実行して評価指標を計算する
func (e *Evaluator) evaluateQuery(ctx context.Context, query Query, k int) QueryRecord {
	record := QueryRecord{
		QueryID: query.ID,
		Query:   query.Query,
	}

	totalRelevant := len(query.RelevantChunkKeys) + len(query.RelevantDocuments)
	if totalRelevant == 0 {
		record.Excluded = true
	}

	result, err := e.retriever.Retrieve(ctx, query.Query, k)
	if err != nil {
		e.logger.Warn("評価クエリの検索に失敗",
			"queryID", query.ID,
			"error", err,
		)
		record.Err = err.Error()
		return record
	}

	record.Retrieved = len(result.Chunks)
	if record.Excluded {
		return record
	}

	relevantKeys := make(map[string]bool, len(query.RelevantChunkKeys))
	for _, key := range query.RelevantChunkKeys {
		relevantKeys[key] = true
	}
	relevantDocs := make(map[string]bool, len(query.RelevantDocuments))
	for _, doc := range query.RelevantDocuments {
		relevantDocs[doc] = true
	}

	// ヒットした正解項目（重複カウントしない）
	hitItems := make(map[string]bool)
	relevantRetrieved := 0
	firstRelevantRank := 0

	for rank, chunk := range result.Chunks {
		relevant := false
		if relevantKeys[chunk.ChunkKey] {
			relevant = true
			hitItems["chunk:"+chunk.ChunkKey] = true
		}
		if relevantDocs[chunk.DocumentID] {
			relevant = true
			hitItems["doc:"+chunk.DocumentID] = true
		}
		if relevant {
			relevantRetrieved++
			if firstRelevantRank == 0 {
				firstRelevantRank = rank + 1
			}
		}
	}

	record.RelevantHits = relevantRetrieved

	// Precision@k の分母は常に k（取得件数が k 未満でも変えない）
	record.Precision = float64(relevantRetrieved) / float64(k)
	record.Recall = float64(len(hitItems)) / float64(totalRelevant)
	if firstRelevantRank > 0 {
		record.ReciprocalRank = 1.0 / float64(firstRelevantRank)
	}

	return record
}
