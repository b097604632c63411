package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	coresearch "github.com/knowref/faq-rag/internal/core/search"
)

// SearchAction は類似チャンク検索コマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	k := cmd.Int("k")

	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if k <= 0 {
		k = int64(appCtx.Config.Retrieval.DefaultK)
	}

	result, err := appCtx.Container.SearchService.Retrieve(ctx, query, int(k))
	if err != nil {
		if errors.Is(err, coresearch.ErrIndexUnavailable) {
			return fmt.Errorf("インデックスストアに接続できません。データベース設定を確認してください: %w", err)
		}
		slog.Error("検索に失敗しました", "error", err)
		return err
	}

	if len(result.Chunks) == 0 {
		fmt.Println("該当するチャンクはありませんでした")
		return nil
	}

	for i, chunk := range result.Chunks {
		fmt.Printf("[%d] %s p.%d (%s) スコア: %.4f\n", i+1, chunk.DocumentID, chunk.Page, chunk.Role, chunk.Score)
		if chunk.PartCount > 1 {
			fmt.Printf("    分割: %d/%d\n", chunk.PartIndex, chunk.PartCount)
		}
		fmt.Printf("    %s\n\n", summarizeContent(chunk.Content))
	}

	return nil
}

// summarizeContent は長いチャンク本文を一覧表示用に切り詰める
func summarizeContent(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	const limit = 200
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
