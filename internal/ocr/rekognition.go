package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// DetectTextAPI はRekognitionクライアントのうち使用する部分
type DetectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// rekognitionWorker はAWS RekognitionのDetectTextで認識するワーカー
type rekognitionWorker struct {
	client    DetectTextAPI
	whitelist string
}

// NewRekognitionFactory は指定リージョンのRekognitionクライアントを使うファクトリを返す
func NewRekognitionFactory(region string) WorkerFactory {
	return func(ctx context.Context, params Params) (Worker, error) {
		opts := []func(*awsconfig.LoadOptions) error{}
		if region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("AWS設定の読み込みに失敗: %w", err)
		}

		return NewRekognitionWorker(rekognition.NewFromConfig(cfg), params), nil
	}
}

// NewRekognitionWorker は既存のクライアントからワーカーを作成する
func NewRekognitionWorker(client DetectTextAPI, params Params) Worker {
	return &rekognitionWorker{
		client:    client,
		whitelist: params.Whitelist,
	}
}

// Recognize はDetectTextを呼び出し、単語と行を認識結果に変換する
func (w *rekognitionWorker) Recognize(ctx context.Context, img []byte) (*Output, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("画像サイズの取得に失敗: %w", err)
	}

	result, err := w.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: img},
	})
	if err != nil {
		return nil, fmt.Errorf("Rekognition DetectTextに失敗: %w", err)
	}

	var (
		lines     []string
		lineTotal float64
		words     []Word
	)
	for _, detection := range result.TextDetections {
		text := w.filter(aws.ToString(detection.DetectedText))
		confidence := float64(aws.ToFloat32(detection.Confidence))

		switch detection.Type {
		case types.TextTypesLine:
			lines = append(lines, text)
			lineTotal += confidence
		case types.TextTypesWord:
			words = append(words, Word{
				Text:       text,
				Confidence: confidence,
				Box:        toBox(detection.Geometry, cfg.Width, cfg.Height),
			})
		}
	}

	var confidence float64
	if len(lines) > 0 {
		confidence = lineTotal / float64(len(lines))
	}

	log.Printf("Rekognition: %d行 %d単語を検出しました", len(lines), len(words))
	return &Output{
		Text:       strings.Join(lines, "\n"),
		Confidence: confidence,
		Words:      words,
	}, nil
}

// Close はHTTPクライアント以外に解放するものがない
func (w *rekognitionWorker) Close() error {
	return nil
}

// filter はホワイトリスト外の文字を取り除く（大文字小文字は区別しない）
func (w *rekognitionWorker) filter(text string) string {
	if w.whitelist == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) ||
			strings.ContainsRune(w.whitelist, r) ||
			strings.ContainsRune(w.whitelist, unicode.ToUpper(r)) {
			return r
		}
		return -1
	}, text)
}

// toBox は比率で表されたバウンディングボックスをピクセル座標に変換する
func toBox(geometry *types.Geometry, width, height int) Box {
	if geometry == nil || geometry.BoundingBox == nil {
		return Box{}
	}
	bb := geometry.BoundingBox
	left := float64(aws.ToFloat32(bb.Left))
	top := float64(aws.ToFloat32(bb.Top))
	w := float64(aws.ToFloat32(bb.Width))
	h := float64(aws.ToFloat32(bb.Height))

	return Box{
		X0: int(left * float64(width)),
		Y0: int(top * float64(height)),
		X1: int((left + w) * float64(width)),
		Y1: int((top + h) * float64(height)),
	}
}
