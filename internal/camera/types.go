package camera

import (
	"context"
	"errors"
	"image"
	"time"
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中
	StatusError    Status = "error"    // カメラでエラーが発生
)

// FacingEnvironment はデバイス未選択時に要求する背面カメラの指定
const FacingEnvironment = "environment"

var (
	// ErrDeviceEnumeration はデバイス一覧の取得がプラットフォームに拒否された
	ErrDeviceEnumeration = errors.New("camera: device enumeration failed")
	// ErrCameraAccess は権限不足またはハードウェア障害でストリームを開けなかった
	ErrCameraAccess = errors.New("camera: access failed")
	// ErrNotActive はカメラが動作中でないためフレームを取得できない
	ErrNotActive = errors.New("camera: not active")
)

// DeviceDescriptor は列挙されたキャプチャデバイス
type DeviceDescriptor struct {
	ID    string `json:"id"`    // デバイスID（例: /dev/video0）
	Label string `json:"label"` // 表示名
}

// Constraints はストリーム取得時の要求条件
type Constraints struct {
	DeviceID   string // 空の場合は FacingMode を優先
	FacingMode string // DeviceID 未指定時のみ使用
	Width      int    // 希望する幅
	Height     int    // 希望する高さ
}

// Settings はライフサイクルマネージャーの設定
type Settings struct {
	Width       int // 希望する幅
	Height      int // 希望する高さ
	JPEGQuality int // キャプチャ時のJPEG品質 (1-100)
}

// DefaultSettings はデフォルト設定を返す
func DefaultSettings() Settings {
	return Settings{
		Width:       1280,
		Height:      720,
		JPEGQuality: 80,
	}
}

// Frame は1回のキャプチャで得た静止画
// 所有権は呼び出し側に移り、マネージャーは保持しない
type Frame struct {
	Data       []byte    // JPEGデータ
	Width      int       // 画像幅
	Height     int       // 画像高さ
	MimeType   string    // 常に image/jpeg
	DeviceID   string    // 撮影したデバイス
	CapturedAt time.Time // 撮影時刻
}

// Platform はカメラデバイスを提供する下位層
type Platform interface {
	// EnumerateDevices は利用可能なキャプチャデバイスを列挙する
	EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error)

	// OpenStream は条件に合うデバイスのストリームを開く
	OpenStream(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream は開かれた映像ストリーム
type Stream interface {
	// DeviceID は実際に開かれたデバイスを返す
	DeviceID() string

	// Snapshot は現在の映像フレームをネイティブ解像度で返す
	Snapshot(ctx context.Context) (image.Image, error)

	// Close は全トラックを停止し、映像の出力先を解放する
	Close() error
}
