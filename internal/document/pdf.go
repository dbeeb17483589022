// Package document pulls plain text out of uploaded resume files.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	apperrors "github.com/spigell/job-radar/internal/errors"
)

// PDFText extracts the text of every page, in page order. Pages that fail to
// extract are logged and skipped; a document without any text is invalid input.
func PDFText(data []byte, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(data) == 0 {
		return "", apperrors.InvalidInput("pdf is empty", nil)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.InvalidInput("read pdf", err)
	}

	pages, err := reader.GetNumPages()
	if err != nil {
		return "", apperrors.InvalidInput("count pdf pages", err)
	}
	if pages == 0 {
		return "", apperrors.InvalidInput("pdf has no pages", nil)
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			logger.Warn("skipping pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	if b.Len() == 0 {
		return "", apperrors.InvalidInput("no text could be extracted from the pdf", nil)
	}

	logger.Debug("pdf text extracted", zap.Int("pages", pages), zap.Int("length", b.Len()))
	return b.String(), nil
}

func pageText(reader *model.PdfReader, number int) (string, error) {
	page, err := reader.GetPage(number)
	if err != nil {
		return "", fmt.Errorf("get page: %w", err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", fmt.Errorf("create extractor: %w", err)
	}
	return ex.ExtractText()
}
