package ask

import (
	"fmt"
	"strings"

	"github.com/knowref/faq-rag/internal/core/search"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultMaxContextTokens はコンテキストセクションのデフォルトトークン上限
const DefaultMaxContextTokens = 4000

// PromptBuilder は検索結果から根拠付き回答生成用のプロンプトを構築する。
// コンテキストがトークン上限を超える場合、スコアの低いチャンクから
// ブロック単位で除外する（途中で切れた引用を作らない）。
type PromptBuilder struct {
	encoder          *tiktoken.Tiktoken
	maxContextTokens int
}

// NewPromptBuilder は新しいPromptBuilderを作成する
func NewPromptBuilder(maxContextTokens int) (*PromptBuilder, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	return &PromptBuilder{
		encoder:          encoder,
		maxContextTokens: maxContextTokens,
	}, nil
}

// Build はプロンプトと、実際にコンテキストへ採用されたチャンクを返す。
// chunks はスコア降順で渡される前提で、上限超過時は末尾（低スコア）側から
// 除外される。
func (b *PromptBuilder) Build(query string, chunks []*search.ScoredChunk) (string, []*search.ScoredChunk) {
	// トークン上限内に収まるブロックだけを採用する
	used := make([]*search.ScoredChunk, 0, len(chunks))
	blocks := make([]string, 0, len(chunks))
	totalTokens := 0

	for i, chunk := range chunks {
		block := formatContextBlock(i+1, chunk)
		blockTokens := len(b.encoder.Encode(block, nil, nil))
		if totalTokens+blockTokens > b.maxContextTokens {
			break
		}
		used = append(used, chunk)
		blocks = append(blocks, block)
		totalTokens += blockTokens
	}

	var sb strings.Builder

	sb.WriteString("あなたは社内FAQドキュメントに精通したサポートアシスタントです。\n")
	sb.WriteString("以下のコンテキスト情報のみを基に、ユーザーの質問に正確かつ簡潔に回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- コンテキストに含まれる情報のみを使用して回答してください\n")
	sb.WriteString("- 回答の根拠としたコンテキスト番号（例: [1]）を明示してください\n")
	sb.WriteString("- コンテキストに回答が含まれない場合は、推測せずにその旨を述べてください\n\n")

	sb.WriteString("## コンテキスト: 関連FAQ\n")
	if len(blocks) > 0 {
		for _, block := range blocks {
			sb.WriteString(block)
		}
	} else {
		sb.WriteString("(該当するFAQ情報はありません)\n\n")
	}

	sb.WriteString("## ユーザーの質問\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## 回答\n")

	return sb.String(), used
}

// formatContextBlock は1チャンク分のコンテキストブロックを整形する
func formatContextBlock(number int, chunk *search.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### [%d] 出典: %s p.%d\n", number, chunk.DocumentID, chunk.Page))
	sb.WriteString(fmt.Sprintf("種別: %s | 関連度: %.3f", chunk.Role, chunk.Score))
	if chunk.PartCount > 1 {
		sb.WriteString(fmt.Sprintf(" | 分割: %d/%d", chunk.PartIndex, chunk.PartCount))
	}
	sb.WriteString("\n")
	sb.WriteString(chunk.Content)
	sb.WriteString("\n\n")
	return sb.String()
}
