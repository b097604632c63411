package extract

import (
	"context"
	"errors"
)

// ErrPageUnreadable はページがデコード不能な場合のエラー（破損画像、ゼロバイト領域など）
var ErrPageUnreadable = errors.New("page is unreadable")

// Document はコーパス内の1つのPDFドキュメントを表す
// ID はファイル名から導出される安定識別子で、再取り込み時にも変わらない
type Document struct {
	ID    string // ドキュメント識別子（ファイル名ベース）
	Path  string // ソースファイルのパス
	Pages []Page // ページ順のテキスト（抽出失敗ページは含まれない）
}

// Page は1ページ分の抽出・正規化済みテキストを表す
type Page struct {
	Number     int     // ページ番号（1始まり）
	Text       string  // 正規化済みテキスト
	OCRUsed    bool    // OCRで抽出したかどうか（falseはテキストレイヤー直読み）
	Confidence float64 // OCR信頼度（0-100）。OCR未使用時は -1
}

// PageText はPageExtractorが返す生の抽出結果
type PageText struct {
	Text       string
	OCRUsed    bool
	Confidence float64
}

// PageExtractor はPDFページからテキストを抽出する能力インターフェース
// テキストレイヤーを持つページは直接読み、画像のみのページはOCRにフォールバックする。
// デコード不能なページは ErrPageUnreadable を返す（呼び出し側でスキップ）。
type PageExtractor interface {
	// PageCount はドキュメントのページ数を返す
	PageCount(ctx context.Context, path string) (int, error)

	// ExtractPage は指定ページのテキストを抽出する（1始まり）
	ExtractPage(ctx context.Context, path string, pageNumber int) (*PageText, error)
}
