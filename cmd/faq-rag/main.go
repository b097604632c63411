package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/knowref/faq-rag/internal/app/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（AppContext初期化後に設定値で差し替わる）
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "faq-rag",
		Usage: "スキャンPDFのFAQコーパスに対する検索拡張質問応答システム",
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "インデックス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "rebuild",
						Usage: "コーパス全体からインデックスを再構築",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:  "corpus",
								Usage: "PDFコーパスのディレクトリ（省略時は CORPUS_DIR）",
							},
							&cli.BoolFlag{
								Name:  "keep-inactive",
								Usage: "再構築後も非アクティブな旧バージョンを残す",
							},
						},
						Action: appcli.IndexRebuildAction,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "類似チャンクを検索",
				ArgsUsage: "<クエリ>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "取得チャンク数（省略時は RETRIEVAL_DEFAULT_K）",
					},
				},
				Action: appcli.SearchAction,
			},
			{
				Name:      "ask",
				Usage:     "FAQコーパスを根拠に質問に回答",
				ArgsUsage: "<質問文>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "コンテキストに使用するチャンク数",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "回答の参照ソースを表示",
					},
				},
				Action: appcli.AskAction,
			},
			{
				Name:  "eval",
				Usage: "検索品質評価コマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "評価クエリセットを実行して指標を集計",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "評価クエリセットのJSONファイル",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "k",
								Usage: "取得チャンク数（省略時は RETRIEVAL_DEFAULT_K）",
							},
							&cli.StringFlag{
								Name:  "export",
								Usage: "レポートのJSON出力先ファイルパス",
							},
						},
						Action: appcli.EvalRunAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
