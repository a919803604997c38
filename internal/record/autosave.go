package record

import (
	"context"
	"log"

	"platescan/internal/detection"
)

// AutoSaver は受理された検出結果を記録として保存する
type AutoSaver struct {
	store Store
}

// NewAutoSaver は新しいAutoSaverを作成する
func NewAutoSaver(store Store) *AutoSaver {
	return &AutoSaver{store: store}
}

// OnDetection は検出結果を処理済みの記録として保存する
func (a *AutoSaver) OnDetection(ctx context.Context, result *detection.Result) error {
	in := Input{
		PlateNumber: result.PlateNumber,
		Confidence:  result.Confidence,
		Processed:   1,
	}
	if result.Image != nil {
		in.ImageData = DataURL(result.Image.MimeType, result.Image.Data)
	}

	rec, err := a.store.Create(ctx, in)
	if err != nil {
		return err
	}
	log.Printf("検出結果を保存しました: %s (%s)", rec.PlateNumber, rec.ID)
	return nil
}
