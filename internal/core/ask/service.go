package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowref/faq-rag/internal/core/search"
)

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Retriever は質問に類似するチャンクの取得能力
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*search.RetrievalResult, error)
}

// Service は根拠付き質問応答のユースケースを提供する
type Service struct {
	retriever     Retriever
	llm           LLMClient
	promptBuilder *PromptBuilder
	defaultK      int
	logger        *slog.Logger
}

type serviceOptions struct {
	defaultK         int
	maxContextTokens int
	logger           *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithAskLogger は Service にロガーを設定する
func WithAskLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithDefaultK は k 未指定時の取得件数を設定する
func WithDefaultK(k int) ServiceOption {
	return func(o *serviceOptions) {
		o.defaultK = k
	}
}

// WithMaxContextTokens はコンテキストのトークン上限を設定する
func WithMaxContextTokens(tokens int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxContextTokens = tokens
	}
}

// NewService は新しいServiceを作成する
func NewService(retriever Retriever, llm LLMClient, opts ...ServiceOption) (*Service, error) {
	options := serviceOptions{
		defaultK:         search.DefaultK,
		maxContextTokens: DefaultMaxContextTokens,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.defaultK <= 0 {
		options.defaultK = search.DefaultK
	}

	promptBuilder, err := NewPromptBuilder(options.maxContextTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt builder: %w", err)
	}

	return &Service{
		retriever:     retriever,
		llm:           llm,
		promptBuilder: promptBuilder,
		defaultK:      options.defaultK,
		logger:        options.logger,
	}, nil
}

// Ask は質問に対して検索結果を根拠とした回答を生成する。
// 該当するコンテキストが1件もない場合もLLMには問い合わせ、
// 「情報が見つからない」旨を述べる回答を得る。
func (s *Service) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	k := params.K
	if k <= 0 {
		k = s.defaultK
	}

	result, err := s.retriever.Retrieve(ctx, params.Query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	s.logger.Info("コンテキストを取得",
		"query", params.Query,
		"k", k,
		"hits", len(result.Chunks),
	)

	prompt, used := s.promptBuilder.Build(params.Query, result.Chunks)

	answer, err := s.llm.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	// 回答の根拠には実際にプロンプトへ採用されたチャンクのみを列挙する
	sources := make([]SourceReference, 0, len(used))
	for _, chunk := range used {
		sources = append(sources, SourceReference{
			DocumentID: chunk.DocumentID,
			Page:       chunk.Page,
			ChunkKey:   chunk.ChunkKey,
			Score:      chunk.Score,
		})
	}

	s.logger.Info("回答生成が完了",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return &AskResult{
		Answer:  answer,
		Sources: sources,
	}, nil
}
