//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractAvailable はTesseract対応がビルドされているか
const TesseractAvailable = true

// tesseractWorker はgosseractクライアントを包むワーカー
type tesseractWorker struct {
	client *gosseract.Client
}

// NewTesseractWorker はパラメータを設定したgosseractクライアントを生成する
func NewTesseractWorker(_ context.Context, params Params) (Worker, error) {
	client := gosseract.NewClient()

	if params.Language != "" {
		if err := client.SetLanguage(params.Language); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("言語の設定に失敗: %w", err)
		}
	}
	if params.Whitelist != "" {
		if err := client.SetWhitelist(params.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ホワイトリストの設定に失敗: %w", err)
		}
	}
	if err := client.SetPageSegMode(pageSegMode(params.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ページセグメンテーションモードの設定に失敗: %w", err)
	}

	return &tesseractWorker{client: client}, nil
}

// Recognize は画像から文字を認識する
// gosseractはキャンセルに対応しないため ctx は使わない
func (w *tesseractWorker) Recognize(_ context.Context, image []byte) (*Output, error) {
	if err := w.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("画像の設定に失敗: %w", err)
	}

	text, err := w.client.Text()
	if err != nil {
		return nil, fmt.Errorf("テキストの抽出に失敗: %w", err)
	}

	boxes, err := w.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("単語の位置取得に失敗: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	var total float64
	for _, box := range boxes {
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence,
			Box: Box{
				X0: box.Box.Min.X,
				Y0: box.Box.Min.Y,
				X1: box.Box.Max.X,
				Y1: box.Box.Max.Y,
			},
		})
		total += box.Confidence
	}

	var confidence float64
	if len(words) > 0 {
		confidence = total / float64(len(words))
	}

	return &Output{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		Words:      words,
	}, nil
}

// Close はクライアントを解放する
func (w *tesseractWorker) Close() error {
	return w.client.Close()
}

func pageSegMode(mode string) gosseract.PageSegMode {
	switch mode {
	case PageSegAuto:
		return gosseract.PSM_AUTO
	case PageSegSingleLine:
		return gosseract.PSM_SINGLE_LINE
	case PageSegSingleWord:
		return gosseract.PSM_SINGLE_WORD
	default:
		return gosseract.PSM_SINGLE_BLOCK
	}
}
