package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/knowref/faq-rag/internal/core/eval"
)

// EvalRunAction は検索品質評価コマンドのアクション
func EvalRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	queriesFile := cmd.String("file")
	k := cmd.Int("k")
	exportPath := cmd.String("export")

	queries, err := eval.LoadQueries(queriesFile)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if k <= 0 {
		k = int64(appCtx.Config.Retrieval.DefaultK)
	}

	slog.Info("検索品質評価を開始", "queries", len(queries), "k", k)

	report, err := appCtx.Container.Evaluator.Run(ctx, queries, int(k))
	if err != nil {
		slog.Error("評価に失敗しました", "error", err)
		return err
	}

	fmt.Printf("評価が完了しました (k=%d)\n", report.K)
	fmt.Printf("  クエリ数:        %d (評価 %d / 除外 %d / 失敗 %d)\n",
		report.TotalQueries, report.EvaluatedQueries, report.SkippedQueries, report.FailedQueries)
	fmt.Printf("  Precision@%d:    %.4f\n", report.K, report.MeanPrecision)
	fmt.Printf("  Recall@%d:       %.4f\n", report.K, report.MeanRecall)
	fmt.Printf("  MRR:             %.4f\n", report.MRR)

	if exportPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		if err := os.WriteFile(exportPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("レポートを出力しました: %s\n", exportPath)
	}

	return nil
}
