package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/models"
)

// Rasterizer renders a single PDF page to a PNG image.
type Rasterizer interface {
	RenderPage(ctx context.Context, raw []byte, pageNum int, dpi int) ([]byte, error)
}

// OCREngine recognizes text in a rendered page image.
type OCREngine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

var _ core.DocumentExtractor = (*PDFExtractor)(nil)

// PDFExtractor reads the native text layer of each page and falls back to OCR
// for pages that look scanned, meaning their stripped text is shorter than
// textThreshold characters.
type PDFExtractor struct {
	textThreshold int
	dpi           int
	rasterizer    Rasterizer
	ocr           OCREngine
}

func NewPDFExtractor(textThreshold, dpi int, r Rasterizer, o OCREngine) *PDFExtractor {
	return &PDFExtractor{textThreshold: textThreshold, dpi: dpi, rasterizer: r, ocr: o}
}

// Extract returns one PageText per page in page order. Pages never fail
// individually; the worst outcome for a page is empty text.
func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) ([]models.PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	pages := make([]models.PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, e.resolvePage(ctx, raw, i, nativeText(reader, i)))
	}
	return pages, nil
}

// resolvePage applies the OCR fallback rule to one page: OCR runs at most once
// and its output only replaces the native text when non-empty.
func (e *PDFExtractor) resolvePage(ctx context.Context, raw []byte, pageNum int, native string) models.PageText {
	page := models.PageText{Index: pageNum - 1, Text: native}
	if len(strings.TrimSpace(native)) >= e.textThreshold {
		return page
	}
	if ocrText, ok := e.ocrPage(ctx, raw, pageNum); ok {
		page.Text = ocrText
		page.UsedOCR = true
	}
	return page
}

// ocrPage rasterizes and recognizes one page. Any failure is logged and
// reported as not-substituted so the caller keeps the native text.
func (e *PDFExtractor) ocrPage(ctx context.Context, raw []byte, pageNum int) (string, bool) {
	if e.rasterizer == nil || e.ocr == nil {
		return "", false
	}
	img, err := e.rasterizer.RenderPage(ctx, raw, pageNum, e.dpi)
	if err != nil {
		log.Warn().Int("page", pageNum).Err(err).Msg("page rasterization failed, keeping native text")
		return "", false
	}
	text, err := e.ocr.Recognize(ctx, img)
	if err != nil {
		log.Warn().Int("page", pageNum).Err(err).Msg("ocr failed, keeping native text")
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// nativeText reads the text layer of one page. GetPlainText panics on some
// malformed content streams, so the recover turns those pages into empty ones.
func nativeText(reader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Int("page", pageNum).Interface("panic", r).Msg("text layer unreadable")
			text = ""
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		log.Warn().Int("page", pageNum).Err(err).Msg("text layer unreadable")
		return ""
	}
	return text
}
