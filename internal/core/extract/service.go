package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Service はコーパスディレクトリからドキュメントを読み込むサービス
type Service struct {
	extractor PageExtractor
	logger    *slog.Logger
}

// NewService は新しいServiceを作成する
func NewService(extractor PageExtractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		logger:    logger,
	}
}

// ListCorpus はコーパスディレクトリ直下のPDFファイル一覧をパス昇順で返す
func (s *Service) ListCorpus(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}

	// 再取り込み時の決定性のためパス順を固定する
	sort.Strings(paths)
	return paths, nil
}

// LoadDocument は1つのPDFを読み込み、正規化済みページを持つDocumentを返す。
// デコード不能なページは警告ログとともにスキップし、残りのページの処理を継続する。
// 全ページが読めなかった場合はエラーを返す。
func (s *Service) LoadDocument(ctx context.Context, path string) (*Document, error) {
	pageCount, err := s.extractor.PageCount(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	doc := &Document{
		ID:   DocumentID(path),
		Path: path,
	}

	for n := 1; n <= pageCount; n++ {
		pageText, err := s.extractor.ExtractPage(ctx, path, n)
		if err != nil {
			s.logger.Warn("ページの抽出に失敗したためスキップ",
				"document", doc.ID,
				"page", n,
				"error", err,
			)
			continue
		}

		text := Normalize(pageText.Text)
		if text == "" {
			s.logger.Warn("ページから抽出されたテキストが空のためスキップ",
				"document", doc.ID,
				"page", n,
				"ocrUsed", pageText.OCRUsed,
			)
			continue
		}

		doc.Pages = append(doc.Pages, Page{
			Number:     n,
			Text:       text,
			OCRUsed:    pageText.OCRUsed,
			Confidence: pageText.Confidence,
		})
	}

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: no readable pages in %s", ErrPageUnreadable, path)
	}

	return doc, nil
}

// DocumentID はファイルパスから安定したドキュメント識別子を導出する
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
