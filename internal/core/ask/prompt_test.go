package ask

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/knowref/faq-rag/internal/core/ingestion/chunk"
	"github.com/knowref/faq-rag/internal/core/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredChunk(docID string, page int, content string, score float64) *search.ScoredChunk {
	return &search.ScoredChunk{
		ChunkID:    uuid.New(),
		ChunkKey:   docID + ":p1:0",
		DocumentID: docID,
		Page:       page,
		Role:       chunk.RoleQAPair,
		Content:    content,
		PartIndex:  1,
		PartCount:  1,
		Score:      score,
	}
}

func TestPromptBuilder_Build(t *testing.T) {
	t.Run("コンテキストブロックが番号と出典付きで並ぶ", func(t *testing.T) {
		builder, err := NewPromptBuilder(4000)
		require.NoError(t, err)

		chunks := []*search.ScoredChunk{
			scoredChunk("faq-network", 3, "5G is the fifth generation of mobile networks.", 0.92),
			scoredChunk("faq-billing", 1, "Invoices are issued monthly.", 0.71),
		}

		prompt, used := builder.Build("What is 5G?", chunks)
		assert.Len(t, used, 2)

		assert.Contains(t, prompt, "### [1] 出典: faq-network p.3")
		assert.Contains(t, prompt, "### [2] 出典: faq-billing p.1")
		assert.Contains(t, prompt, "5G is the fifth generation")
		assert.Contains(t, prompt, "## ユーザーの質問\nWhat is 5G?")

		// コンテキストは質問より前に置かれる
		assert.Less(t, strings.Index(prompt, "### [1]"), strings.Index(prompt, "## ユーザーの質問"))
	})

	t.Run("トークン上限超過時は低スコアのブロックから除外される", func(t *testing.T) {
		builder, err := NewPromptBuilder(60)
		require.NoError(t, err)

		chunks := []*search.ScoredChunk{
			scoredChunk("faq-a", 1, "Short answer about coverage.", 0.95),
			scoredChunk("faq-b", 2, strings.Repeat("A long repeated answer sentence. ", 30), 0.60),
		}

		prompt, used := builder.Build("coverage?", chunks)
		require.Len(t, used, 1)
		assert.Equal(t, "faq-a", used[0].DocumentID)
		assert.NotContains(t, prompt, "faq-b")
	})

	t.Run("コンテキストが空でもプロンプトは構築される", func(t *testing.T) {
		builder, err := NewPromptBuilder(4000)
		require.NoError(t, err)

		prompt, used := builder.Build("unknown topic?", nil)
		assert.Empty(t, used)
		assert.Contains(t, prompt, "該当するFAQ情報はありません")
		assert.Contains(t, prompt, "unknown topic?")
	})

	t.Run("分割チャンクには連番情報が表示される", func(t *testing.T) {
		builder, err := NewPromptBuilder(4000)
		require.NoError(t, err)

		ch := scoredChunk("faq-long", 2, "part two of a long answer", 0.8)
		ch.PartIndex = 2
		ch.PartCount = 3

		prompt, _ := builder.Build("long answer?", []*search.ScoredChunk{ch})
		assert.Contains(t, prompt, "分割: 2/3")
	})
}

type stubRetriever struct {
	result *search.RetrievalResult
	err    error
	lastK  int
}

func (r *stubRetriever) Retrieve(_ context.Context, query string, k int) (*search.RetrievalResult, error) {
	r.lastK = k
	if r.err != nil {
		return nil, r.err
	}
	if r.result == nil {
		return &search.RetrievalResult{Query: query}, nil
	}
	return r.result, nil
}

type stubLLM struct {
	answer     string
	lastPrompt string
}

func (l *stubLLM) GenerateCompletion(_ context.Context, prompt string) (string, error) {
	l.lastPrompt = prompt
	return l.answer, nil
}

func TestService_Ask(t *testing.T) {
	t.Run("回答と採用チャンクの来歴が返る", func(t *testing.T) {
		retriever := &stubRetriever{result: &search.RetrievalResult{
			Chunks: []*search.ScoredChunk{
				scoredChunk("faq-network", 3, "5G is the fifth generation.", 0.92),
			},
		}}
		llm := &stubLLM{answer: "5Gは第5世代移動通信システムです [1]"}

		svc, err := NewService(retriever, llm)
		require.NoError(t, err)

		result, err := svc.Ask(context.Background(), AskParams{Query: "What is 5G?"})
		require.NoError(t, err)

		assert.Equal(t, "5Gは第5世代移動通信システムです [1]", result.Answer)
		require.Len(t, result.Sources, 1)
		assert.Equal(t, "faq-network", result.Sources[0].DocumentID)
		assert.Equal(t, 3, result.Sources[0].Page)
		assert.Contains(t, llm.lastPrompt, "What is 5G?")
	})

	t.Run("k未指定時はデフォルト値が使われる", func(t *testing.T) {
		retriever := &stubRetriever{}
		svc, err := NewService(retriever, &stubLLM{}, WithDefaultK(7))
		require.NoError(t, err)

		_, err = svc.Ask(context.Background(), AskParams{Query: "question"})
		require.NoError(t, err)
		assert.Equal(t, 7, retriever.lastK)
	})

	t.Run("検索結果が空でもLLMに問い合わせる", func(t *testing.T) {
		llm := &stubLLM{answer: "該当する情報が見つかりませんでした"}
		svc, err := NewService(&stubRetriever{}, llm)
		require.NoError(t, err)

		result, err := svc.Ask(context.Background(), AskParams{Query: "unknown"})
		require.NoError(t, err)
		assert.Empty(t, result.Sources)
		assert.Contains(t, llm.lastPrompt, "該当するFAQ情報はありません")
		assert.NotEmpty(t, result.Answer)
	})

	t.Run("検索エラーはラップして返す", func(t *testing.T) {
		svc, err := NewService(&stubRetriever{err: search.ErrIndexUnavailable}, &stubLLM{})
		require.NoError(t, err)

		_, err = svc.Ask(context.Background(), AskParams{Query: "question"})
		assert.ErrorIs(t, err, search.ErrIndexUnavailable)
	})
}
