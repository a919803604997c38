package server

import (
	"time"

	"platescan/internal/camera"
	"platescan/internal/detection"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// CameraState はカメラの状態
type CameraState struct {
	Status   camera.Status `json:"status"`
	DeviceID string        `json:"deviceId,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string             `json:"status"`
	Camera    CameraState        `json:"camera"`
	Detection detection.Snapshot `json:"detection"`
	Timestamp time.Time          `json:"timestamp"`
}

// Device はキャプチャデバイス
type Device struct {
	DeviceID string `json:"deviceId"`
	Label    string `json:"label"`
}

// DevicesResponse はデバイス一覧のレスポンス
type DevicesResponse struct {
	Devices         []Device `json:"devices"`
	CurrentDeviceID string   `json:"currentDeviceId,omitempty"`
}

// DetectionResponse は受理された検出結果
type DetectionResponse struct {
	PlateNumber string    `json:"plateNumber"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	ImageData   string    `json:"imageData,omitempty"`
}

// MessageResponse はメッセージのみのレスポンス
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
