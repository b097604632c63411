package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	coreask "github.com/knowref/faq-rag/internal/core/ask"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	k := cmd.Int("k")
	showSources := cmd.Bool("show-sources")

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("質問応答を開始", "question", question, "k", k)

	result, err := appCtx.Container.AskService.Ask(ctx, coreask.AskParams{
		Query: question,
		K:     int(k),
	})
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Println(result.Answer)

	if showSources && len(result.Sources) > 0 {
		fmt.Println("\n--- 参照ソース ---")
		for i, source := range result.Sources {
			fmt.Printf("[%d] %s p.%d スコア: %.4f\n",
				i+1,
				source.DocumentID,
				source.Page,
				source.Score,
			)
		}
	}

	return nil
}
