package extract

import (
	"bytes"
	"context"

	"code.sajari.com/docconv"
)

var _ OCREngine = (*DocconvOCR)(nil)

// DocconvOCR recognizes page images through docconv, which runs tesseract when
// built with its ocr tag and errors otherwise. Callers treat errors as
// "no OCR available" rather than failures.
type DocconvOCR struct{}

func (DocconvOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(png), "image/png", false)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Body, nil
}
