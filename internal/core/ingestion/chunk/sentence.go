package chunk

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// segment はチャンク境界判定の最小単位（1文）を表す
type segment struct {
	text      string // 文のテキスト（前後空白なし）
	sep       string // 直前のセグメントとの区切り（"\n" は行頭、" " は同一行内）
	lineStart bool   // 行頭のセグメントかどうか
}

// splitSentences はテキストを文単位に分割する。
// prose のセグメンタを使用し、解析に失敗した場合はテキスト全体を1文として返す。
func splitSentences(text string) []string {
	doc, err := prose.NewDocument(
		text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return []string{text}
	}

	result := make([]string, 0, len(sentences))
	for _, s := range sentences {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			result = append(result, t)
		}
	}
	if len(result) == 0 {
		return []string{text}
	}
	return result
}

// segmentText はページテキストを行構造を保ったまま文セグメントの列に変換する
func segmentText(text string) []segment {
	var segments []segment

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		lineStart := true
		for _, sentence := range splitSentences(trimmed) {
			sep := " "
			if lineStart {
				sep = "\n"
			}
			segments = append(segments, segment{
				text:      sentence,
				sep:       sep,
				lineStart: lineStart,
			})
			lineStart = false
		}
	}

	return segments
}

// joinSegments はセグメント列を元の行構造を保って連結する
func joinSegments(segments []segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteString(seg.sep)
		}
		sb.WriteString(seg.text)
	}
	return sb.String()
}
