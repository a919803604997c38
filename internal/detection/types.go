package detection

import (
	"context"
	"errors"
	"time"

	"platescan/internal/camera"
	"platescan/internal/ocr"
	"platescan/internal/plate"
)

// Status は検出処理の表示状態
type Status string

const (
	StatusIdle      Status = "idle"
	StatusDetecting Status = "detecting"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Reason は検出が却下された理由
type Reason string

const (
	ReasonNoFrame           Reason = "no_frame"
	ReasonEngineUnavailable Reason = "engine_unavailable"
	ReasonProcessError      Reason = "process_error"
	ReasonNoPlateDetected   Reason = "no_plate_detected"
	ReasonLowConfidence     Reason = "low_confidence"
)

// 利用者に表示するメッセージ
const (
	MessageReady           = "Ready"
	MessageDetecting       = "Detecting..."
	MessageSuccess         = "Success!"
	MessageNoFrame         = "No frame available. Please start the camera and try again."
	MessageEngineFailed    = "Failed to initialize OCR engine"
	MessageProcessFailed   = "Failed to process image. Please try again."
	MessageNoPlateDetected = "No license plate detected. Please ensure the plate is clearly visible and well-lit."
	MessageLowConfidence   = "Low confidence detection. Please try again with better lighting or positioning."
)

// 既定の自動復帰時間
const (
	DefaultSuccessRevert = 2 * time.Second
	DefaultErrorRevert   = 3 * time.Second
)

// ErrBusy は検出中に次の検出が要求された場合のエラー
var ErrBusy = errors.New("検出処理が実行中です")

// Result は受理された検出結果
type Result struct {
	PlateNumber string        `json:"plateNumber"`
	Confidence  float64       `json:"confidence"`
	Timestamp   time.Time     `json:"timestamp"`
	Image       *camera.Frame `json:"-"`
}

// Rejection は検出が却下された理由と表示メッセージ
type Rejection struct {
	Reason    Reason
	Message   string
	Candidate plate.Candidate
	Err       error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return string(r.Reason) + ": " + r.Err.Error()
	}
	return string(r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Snapshot はある時点の状態
type Snapshot struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FrameSource は静止画を提供する
type FrameSource interface {
	CaptureFrame(ctx context.Context) (*camera.Frame, error)
}

// Recognizer は文字認識エンジン
type Recognizer interface {
	Initialize(ctx context.Context) error
	Process(ctx context.Context, image []byte) (*ocr.Output, error)
}

// Listener は受理された検出結果を受け取る
type Listener interface {
	OnDetection(ctx context.Context, result *Result) error
}

// Options はオーケストレーターの設定
type Options struct {
	SuccessRevert time.Duration
	ErrorRevert   time.Duration
	Validator     plate.Validator
}

// DefaultOptions は既定の設定を返す
func DefaultOptions() Options {
	return Options{
		SuccessRevert: DefaultSuccessRevert,
		ErrorRevert:   DefaultErrorRevert,
		Validator:     plate.DefaultValidator(),
	}
}
