// Package extract reads the text layer and page count of uploaded files.
// It wraps cgo-backed MuPDF bindings and is wired in from main, so the
// service package builds without them.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"docflow/internal/models"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

var ErrNoText = errors.New("no text layer found")

// FitzExtractor reads embedded text from PDF, TIFF and image files through
// MuPDF. Scanned images without a text layer yield ErrNoText; OCR is not
// attempted.
type FitzExtractor struct {
	logger *zap.Logger
}

func NewFitzExtractor(logger *zap.Logger) *FitzExtractor {
	return &FitzExtractor{logger: logger}
}

func (e *FitzExtractor) ExtractText(ctx context.Context, doc *models.Document, data []byte) (string, error) {
	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", doc.Extension, err)
	}
	defer fz.Close()

	var textBuilder strings.Builder
	for i := 0; i < fz.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := fz.Text(i)
		if err != nil {
			e.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.String("document_id", doc.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}
	}

	text := strings.TrimSpace(textBuilder.String())
	e.logger.Info("Text extraction completed",
		zap.String("document_id", doc.ID.String()),
		zap.String("extension", doc.Extension),
		zap.Int("pages", fz.NumPage()),
		zap.Int("text_length", len(text)),
	)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// PageCount returns the number of pages of a PDF. It also serves as a
// structural check: a file pdfcpu cannot parse returns an error.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to read pdf page count: %w", err)
	}
	return n, nil
}
