package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// OCRで行またぎにハイフネーションされた単語（例: "net- \nwork"）
	hyphenBreakRe = regexp.MustCompile(`(\w)-\s*\n\s*(\w)`)
	// ページ番号アーティファクト（例: "Page 2 of 5"）
	pageArtifactRe = regexp.MustCompile(`Page \d+ of \d+`)
	// 行内の連続スペース・タブ
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
	// 3行以上の連続空行
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize は抽出テキストを正規化する。
// 空白の圧縮と制御文字の除去を行うが、質問/回答の区切りとして意味を持つ
// 改行は保持する。
func Normalize(text string) string {
	// Unicode正規化（NFKC）
	text = norm.NFKC.String(text)

	// 改行コードの統一
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// 改行以外の制御文字を除去
	text = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	// OCRのハイフネーションを復元
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")

	// ページ番号アーティファクトを除去
	text = pageArtifactRe.ReplaceAllString(text, "")

	// 行内の連続空白を1つに圧縮
	text = spaceRunRe.ReplaceAllString(text, " ")

	// 行末の空白を除去
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	text = strings.Join(lines, "\n")

	// 連続空行を1つに圧縮
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
