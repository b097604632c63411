package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/knowref/faq-rag/internal/core/extract"
)

const (
	// DefaultDPI はOCR用ページレンダリングのデフォルト解像度
	DefaultDPI = 300
	// DefaultMinTextLayerLength はテキストレイヤーを採用する最小文字数。
	// これ未満のページはスキャン画像とみなしてOCRにフォールバックする。
	DefaultMinTextLayerLength = 16
)

// OCREngine は画像からのテキスト認識能力
type OCREngine interface {
	// RecognizeImage はPNG画像からテキストと信頼度（0-100）を取得する
	RecognizeImage(ctx context.Context, png []byte) (text string, confidence float64, err error)
}

// Extractor はPDFページからテキストを抽出する。
// テキストレイヤーを持つページは直接読み、スキャン画像のみのページは
// ページをレンダリングしてOCRにかける。
type Extractor struct {
	ocr                OCREngine
	dpi                float64
	minTextLayerLength int
}

type extractorOptions struct {
	dpi                float64
	minTextLayerLength int
}

// ExtractorOption は Extractor のオプション設定
type ExtractorOption func(*extractorOptions)

// WithDPI はOCR用レンダリングの解像度を設定する
func WithDPI(dpi float64) ExtractorOption {
	return func(o *extractorOptions) {
		o.dpi = dpi
	}
}

// WithMinTextLayerLength はテキストレイヤー採用の最小文字数を設定する
func WithMinTextLayerLength(length int) ExtractorOption {
	return func(o *extractorOptions) {
		o.minTextLayerLength = length
	}
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor(ocr OCREngine, opts ...ExtractorOption) *Extractor {
	options := extractorOptions{
		dpi:                DefaultDPI,
		minTextLayerLength: DefaultMinTextLayerLength,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Extractor{
		ocr:                ocr,
		dpi:                options.dpi,
		minTextLayerLength: options.minTextLayerLength,
	}
}

// PageCount はドキュメントのページ数を返す
func (e *Extractor) PageCount(_ context.Context, path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// ExtractPage は指定ページ（1始まり）のテキストを抽出する。
// デコード不能なページは extract.ErrPageUnreadable を返す。
func (e *Extractor) ExtractPage(ctx context.Context, path string, pageNumber int) (*extract.PageText, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNumber < 1 || pageNumber > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNumber, doc.NumPage())
	}

	// go-fitz のページ番号は0始まり
	pageIndex := pageNumber - 1

	// まずテキストレイヤーを試す
	text, textErr := doc.Text(pageIndex)
	if textErr == nil && len(strings.TrimSpace(text)) >= e.minTextLayerLength {
		return &extract.PageText{
			Text:       text,
			OCRUsed:    false,
			Confidence: -1,
		}, nil
	}

	// テキストレイヤーがない（またはほぼ空の）ページはOCRにフォールバック
	png, err := doc.ImagePNG(pageIndex, e.dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render page %d: %v", extract.ErrPageUnreadable, pageNumber, err)
	}

	ocrText, confidence, err := e.ocr.RecognizeImage(ctx, png)
	if err != nil {
		return nil, fmt.Errorf("%w: OCR failed on page %d: %v", extract.ErrPageUnreadable, pageNumber, err)
	}

	return &extract.PageText{
		Text:       ocrText,
		OCRUsed:    true,
		Confidence: confidence,
	}, nil
}

// インターフェース実装の確認
var _ extract.PageExtractor = (*Extractor)(nil)
