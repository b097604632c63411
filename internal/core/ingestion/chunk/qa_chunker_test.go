package chunk

import (
	"strings"
	"testing"

	"github.com/knowref/faq-rag/internal/core/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T, cfg *Config) *QAChunker {
	t.Helper()
	c, err := NewQAChunker(cfg)
	require.NoError(t, err)
	return c
}

func TestQAChunker_ChunkDocument(t *testing.T) {
	t.Run("番号付き質問ごとにQAチャンクが生成される", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{
				Number: 1,
				Text: "1. What is the coverage area of the new base station model.\n" +
					"The new model covers up to 5 km in open terrain.\n" +
					"2. Which frequency bands are supported.\n" +
					"It supports the 3.5 GHz and 28 GHz bands.",
			},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 2)

		assert.Equal(t, RoleQAPair, chunks[0].Role)
		assert.Contains(t, chunks[0].Content, "1. What is the coverage area")
		assert.Contains(t, chunks[0].Content, "5 km in open terrain")
		assert.Equal(t, 1, chunks[0].Page)

		assert.Equal(t, RoleQAPair, chunks[1].Role)
		assert.Contains(t, chunks[1].Content, "2. Which frequency bands")
		assert.Contains(t, chunks[1].Content, "28 GHz")
	})

	t.Run("同一行内の複数の質問が別チャンクに分かれる", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{
				Number: 1,
				Text:   "What is 5G? 5G is the fifth generation of mobile networks. How fast is it? It can exceed 1 Gbps.",
			},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 2)

		assert.Equal(t, RoleQAPair, chunks[0].Role)
		assert.Contains(t, chunks[0].Content, "What is 5G?")
		assert.Contains(t, chunks[0].Content, "fifth generation")
		assert.NotContains(t, chunks[0].Content, "How fast")

		assert.Equal(t, RoleQAPair, chunks[1].Role)
		assert.Contains(t, chunks[1].Content, "How fast is it?")
		assert.Contains(t, chunks[1].Content, "1 Gbps")
	})

	t.Run("最初の質問より前の導入テキストはpreambleチャンクになる", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{
				Number: 1,
				Text: "This document answers frequently asked questions about the rollout.\n" +
					"1. When does the rollout start.\n" +
					"It starts in the second quarter.",
			},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 2)

		assert.Equal(t, RolePreamble, chunks[0].Role)
		assert.Contains(t, chunks[0].Content, "frequently asked questions")
		assert.Equal(t, RoleQAPair, chunks[1].Role)
	})

	t.Run("2ページ目以降の先頭テキストは前ページの回答の続きとして扱う", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{
				Number: 1,
				Text:   "1. Describe the installation procedure.\nFirst, mount the antenna bracket.",
			},
			{
				Number: 2,
				Text:   "Then connect the fiber cable and power supply.\n2. How long does installation take.\nAbout two hours.",
			},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 3)

		assert.Equal(t, RoleQAPair, chunks[0].Role)
		assert.Equal(t, 1, chunks[0].Page)

		assert.Equal(t, RoleAnswer, chunks[1].Role)
		assert.Contains(t, chunks[1].Content, "fiber cable")
		assert.Equal(t, 2, chunks[1].Page)

		assert.Equal(t, RoleQAPair, chunks[2].Role)
		assert.Equal(t, 2, chunks[2].Page)
	})

	t.Run("質問マーカーがないページはページ単位のunstructuredチャンクになる", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{
				Number: 3,
				Text:   "Appendix A lists the regulatory approvals.\nAll units are certified for indoor and outdoor use.",
			},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 1)
		assert.Equal(t, RoleUnstructured, chunks[0].Role)
		assert.Equal(t, 3, chunks[0].Page)
	})

	t.Run("回答を伴わない質問はquestionチャンクになる", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		pages := []extract.Page{
			{Number: 1, Text: "Is the device waterproof?"},
		}

		chunks := chunker.ChunkDocument(pages)
		require.Len(t, chunks, 1)
		assert.Equal(t, RoleQuestion, chunks[0].Role)
	})

	t.Run("空ページ列からはチャンクが生成されない", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		chunks := chunker.ChunkDocument(nil)
		assert.Empty(t, chunks)
	})
}

func TestQAChunker_Oversized(t *testing.T) {
	t.Run("上限超過チャンクは文境界で分割され連番が付与される", func(t *testing.T) {
		chunker := newTestChunker(t, &Config{MaxTokens: 30})

		var sb strings.Builder
		sb.WriteString("1. Explain the maintenance schedule.\n")
		for i := 0; i < 10; i++ {
			sb.WriteString("The maintenance crew inspects every antenna and cable on site. ")
		}

		chunks := chunker.ChunkDocument([]extract.Page{{Number: 1, Text: sb.String()}})
		require.Greater(t, len(chunks), 1)

		total := len(chunks)
		for i, ch := range chunks {
			assert.Equal(t, RoleQAPair, ch.Role)
			assert.Equal(t, 1, ch.Page)
			assert.Equal(t, i+1, ch.PartIndex)
			assert.Equal(t, total, ch.PartCount)
			assert.LessOrEqual(t, ch.Tokens, 30)
		}
	})

	t.Run("単一文が上限を超える場合は切り詰めマーカー付きで切り詰める", func(t *testing.T) {
		chunker := newTestChunker(t, &Config{MaxTokens: 10})

		longSentence := "The station firmware supports " + strings.Repeat("very ", 50) + "long configuration names"
		chunks := chunker.ChunkDocument([]extract.Page{{Number: 1, Text: longSentence}})

		require.NotEmpty(t, chunks)
		assert.True(t, strings.HasSuffix(chunks[0].Content, TruncationMarker))
	})

	t.Run("上限以内のチャンクはPartIndexとPartCountが1になる", func(t *testing.T) {
		chunker := newTestChunker(t, nil)

		chunks := chunker.ChunkDocument([]extract.Page{
			{Number: 1, Text: "1. Is roaming supported.\nYes, roaming is supported."},
		})
		require.Len(t, chunks, 1)
		assert.Equal(t, 1, chunks[0].PartIndex)
		assert.Equal(t, 1, chunks[0].PartCount)
	})
}

func TestRole_Valid(t *testing.T) {
	for _, role := range []Role{RolePreamble, RoleQAPair, RoleQuestion, RoleAnswer, RoleUnstructured} {
		assert.True(t, role.Valid(), string(role))
	}
	assert.False(t, Role("summary").Valid())
}
