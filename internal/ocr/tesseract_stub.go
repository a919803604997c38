//go:build !tesseract

package ocr

import (
	"context"
	"errors"
)

// TesseractAvailable はTesseract対応がビルドされているか
const TesseractAvailable = false

var errTesseractDisabled = errors.New("Tesseract対応がビルドされていません (-tags=tesseract で有効化)")

// NewTesseractWorker はTesseractが無効なビルドでのスタブ
func NewTesseractWorker(_ context.Context, _ Params) (Worker, error) {
	return nil, errTesseractDisabled
}
