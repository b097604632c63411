package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/knowref/faq-rag/internal/core/extract"
	"github.com/pkoukk/tiktoken-go"
)

// Role はチャンクの種別を表す閉じた列挙
type Role string

const (
	// RolePreamble は最初の質問マーカーより前の導入テキスト
	RolePreamble Role = "preamble"
	// RoleQAPair は質問とその回答からなるチャンク
	RoleQAPair Role = "qa-pair"
	// RoleQuestion は回答を伴わない質問のみのチャンク
	RoleQuestion Role = "question"
	// RoleAnswer は前ページの回答の続きなど、質問を伴わない回答テキスト
	RoleAnswer Role = "answer"
	// RoleUnstructured は質問マーカーが検出されなかったページ単位のチャンク
	RoleUnstructured Role = "unstructured"
)

// Valid はRoleが既知の値かどうかを返す
func (r Role) Valid() bool {
	switch r {
	case RolePreamble, RoleQAPair, RoleQuestion, RoleAnswer, RoleUnstructured:
		return true
	}
	return false
}

// TruncationMarker は単一文がトークン上限を超えた場合に付与される切り詰めマーカー
const TruncationMarker = " …[truncated]"

// Chunk はQAチャンカーが生成する1チャンクを表す
type Chunk struct {
	Role      Role
	Content   string
	Page      int // 出典ページ番号（1始まり）
	Tokens    int
	PartIndex int // 長大チャンク分割時の連番（1始まり）。未分割は 1
	PartCount int // 分割総数。未分割は 1
}

// Config はQAChunkerの設定
type Config struct {
	// MaxTokens はチャンクの最大トークン数。超過したチャンクは文境界で分割される
	MaxTokens int
	// QuestionPattern は質問マーカーとして扱う行頭パターン（正規表現）
	QuestionPattern string
}

// DefaultConfig はデフォルトのチャンカー設定を返す
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:       400,
		QuestionPattern: `^\s*\d+[.,]\s+`,
	}
}

// QAChunker は正規化済みテキストを質問/回答境界でチャンク化する
type QAChunker struct {
	encoder    *tiktoken.Tiktoken
	questionRe *regexp.Regexp
	maxTokens  int
}

// NewQAChunker は新しいQAChunkerを作成する
func NewQAChunker(cfg *Config) (*QAChunker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// cl100k_baseエンコーダを使用（text-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	questionRe, err := regexp.Compile(cfg.QuestionPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile question pattern: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultConfig().MaxTokens
	}

	return &QAChunker{
		encoder:    encoder,
		questionRe: questionRe,
		maxTokens:  maxTokens,
	}, nil
}

// ChunkDocument はドキュメントの全ページをページ順にチャンク化する。
// チャンクはページをまたがない（出典ページを正確に保つため）。
func (c *QAChunker) ChunkDocument(pages []extract.Page) []*Chunk {
	var chunks []*Chunk
	for i, page := range pages {
		chunks = append(chunks, c.chunkPage(page, i == 0)...)
	}
	return chunks
}

// chunkPage は1ページ分のテキストをチャンク化する。
// 質問マーカー（質問パターンに一致する行頭、または "?" で終わる文）から
// 次のマーカーの直前までを1つのQAチャンクとする。
func (c *QAChunker) chunkPage(page extract.Page, firstPage bool) []*Chunk {
	segments := segmentText(page.Text)
	if len(segments) == 0 {
		return nil
	}

	// マーカーの位置を検出
	var markers []int
	for i, seg := range segments {
		if c.isQuestionMarker(seg) {
			markers = append(markers, i)
		}
	}

	// マーカーなし: ページ全体を1つの unstructured チャンクとする
	// （ページ単位に留めることでメモリと出典の正確さを保つ）
	if len(markers) == 0 {
		return c.emit(RoleUnstructured, segments, page.Number)
	}

	var chunks []*Chunk

	// 最初のマーカーより前の導入テキスト（無言で捨てない）
	// 2ページ目以降では前ページの回答の続きとみなす
	if markers[0] > 0 {
		role := RoleAnswer
		if firstPage {
			role = RolePreamble
		}
		chunks = append(chunks, c.emit(role, segments[:markers[0]], page.Number)...)
	}

	// マーカーから次のマーカーの直前までを1チャンク
	for i, start := range markers {
		end := len(segments)
		if i+1 < len(markers) {
			end = markers[i+1]
		}

		role := RoleQAPair
		if end-start == 1 {
			// 回答を伴わない質問のみ
			role = RoleQuestion
		}
		chunks = append(chunks, c.emit(role, segments[start:end], page.Number)...)
	}

	return chunks
}

// isQuestionMarker はセグメントが質問マーカーかどうかを判定する
func (c *QAChunker) isQuestionMarker(seg segment) bool {
	if strings.HasSuffix(seg.text, "?") {
		return true
	}
	return seg.lineStart && c.questionRe.MatchString(seg.text)
}

// emit はセグメント列からチャンクを生成する。
// トークン上限を超える場合は文境界で分割し、各サブチャンクに親の役割と
// 出典を引き継いだ上で、元のQA単位を再構成できるよう連番を付与する。
func (c *QAChunker) emit(role Role, segments []segment, pageNumber int) []*Chunk {
	content := joinSegments(segments)
	tokens := c.countTokens(content)

	if tokens <= c.maxTokens {
		return []*Chunk{{
			Role:      role,
			Content:   content,
			Page:      pageNumber,
			Tokens:    tokens,
			PartIndex: 1,
			PartCount: 1,
		}}
	}

	// 文境界でサブチャンクに分割
	var parts [][]segment
	var current []segment
	currentTokens := 0

	for _, seg := range segments {
		segTokens := c.countTokens(seg.text)

		// 単一文が上限を超える場合はハードに切り詰める
		// （元の挙動が未規定のため、マーカー付き切り詰めを採用）
		if segTokens > c.maxTokens {
			seg.text = c.truncateToTokens(seg.text, c.maxTokens) + TruncationMarker
			segTokens = c.countTokens(seg.text)
		}

		if len(current) > 0 && currentTokens+segTokens > c.maxTokens {
			parts = append(parts, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, seg)
		currentTokens += segTokens
	}
	if len(current) > 0 {
		parts = append(parts, current)
	}

	chunks := make([]*Chunk, 0, len(parts))
	for i, part := range parts {
		partContent := joinSegments(part)
		chunks = append(chunks, &Chunk{
			Role:      role,
			Content:   partContent,
			Page:      pageNumber,
			Tokens:    c.countTokens(partContent),
			PartIndex: i + 1,
			PartCount: len(parts),
		})
	}
	return chunks
}

// countTokens はテキストのトークン数をカウントする
func (c *QAChunker) countTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// truncateToTokens はテキストを指定トークン数に収まるよう切り詰める
func (c *QAChunker) truncateToTokens(text string, maxTokens int) string {
	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoder.Decode(tokens[:maxTokens])
}
