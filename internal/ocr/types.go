package ocr

import (
	"context"
	"errors"
)

// State はアダプターの状態を表す
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateTerminated    State = "terminated"
)

// ページセグメンテーションモード
const (
	PageSegAuto        = "auto"
	PageSegSingleBlock = "single_block"
	PageSegSingleLine  = "single_line"
	PageSegSingleWord  = "single_word"
)

// DefaultWhitelist はナンバープレートに使われる文字
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrEngineInit = errors.New("OCRエンジンの初期化に失敗しました")
	ErrProcess    = errors.New("OCR処理に失敗しました")
	ErrNotReady   = errors.New("OCRエンジンが初期化されていません")
)

// Box は単語の外接矩形（ピクセル座標）
type Box struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word は認識された1単語
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
	Box        Box     `json:"bbox"`
}

// Output は1回の認識結果
type Output struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
	Words      []Word  `json:"words"`
}

// Params はワーカー生成時の認識パラメータ
type Params struct {
	Language    string
	Whitelist   string
	PageSegMode string
}

// DefaultParams はナンバープレート向けの既定パラメータを返す
func DefaultParams() Params {
	return Params{
		Language:    "eng",
		Whitelist:   DefaultWhitelist,
		PageSegMode: PageSegSingleBlock,
	}
}

// Worker は認識エンジンのインスタンス
type Worker interface {
	Recognize(ctx context.Context, image []byte) (*Output, error)
	Close() error
}

// WorkerFactory はワーカーを生成する
type WorkerFactory func(ctx context.Context, params Params) (Worker, error)
