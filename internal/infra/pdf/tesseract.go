package pdf

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// DefaultOCRLanguage はTesseractのデフォルト言語
const DefaultOCRLanguage = "eng"

// TesseractEngine はTesseractを使用したOCRエンジン実装
type TesseractEngine struct {
	language string
}

// NewTesseractEngine は新しい TesseractEngine を作成する
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = DefaultOCRLanguage
	}
	return &TesseractEngine{language: language}
}

// RecognizeImage はPNG画像からテキストを認識する。
// 信頼度は単語ごとの認識信頼度の平均（0-100）。
// gosseract.Client はゴルーチンセーフではないため呼び出しごとに生成する。
func (e *TesseractEngine) RecognizeImage(ctx context.Context, png []byte) (string, float64, error) {
	select {
	case <-ctx.Done():
		return "", 0, ctx.Err()
	default:
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", 0, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", 0, fmt.Errorf("failed to set OCR image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("failed to recognize text: %w", err)
	}

	confidence := 0.0
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil && len(boxes) > 0 {
		sum := 0.0
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes))
	}

	return text, confidence, nil
}

// インターフェース実装の確認
var _ OCREngine = (*TesseractEngine)(nil)
