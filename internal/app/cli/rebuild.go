package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/knowref/faq-rag/internal/core/ingestion"
)

// IndexRebuildAction はインデックス再構築コマンドのアクション
func IndexRebuildAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	corpusDir := cmd.String("corpus")
	keepInactive := cmd.Bool("keep-inactive")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if corpusDir == "" {
		corpusDir = appCtx.Config.Corpus.Dir
	}

	slog.Info("インデックス再構築を実行します",
		"corpus", corpusDir,
		"keepInactive", keepInactive,
	)

	result, err := appCtx.Container.RebuildService.Rebuild(ctx, ingestion.RebuildParams{
		CorpusDir:    corpusDir,
		KeepInactive: keepInactive,
	})
	if err != nil {
		slog.Error("インデックス再構築に失敗しました", "error", err)
		return err
	}

	fmt.Printf("インデックス再構築が完了しました\n")
	fmt.Printf("  バージョン:     %s\n", result.VersionID)
	fmt.Printf("  ドキュメント数: %d (失敗 %d)\n", result.ProcessedDocuments, result.FailedDocuments)
	fmt.Printf("  ページ数:       %d (OCR %d)\n", result.TotalPages, result.OCRPages)
	fmt.Printf("  チャンク数:     %d\n", result.TotalChunks)
	fmt.Printf("  所要時間:       %s\n", result.Duration)
	if result.DeletedVersions > 0 {
		fmt.Printf("  削除した旧バージョン: %d\n", result.DeletedVersions)
	}

	return nil
}
