package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"strings"
	"sync"
	"time"
)

// Manager は1台のカメラのライフサイクルを管理する
type Manager struct {
	platform Platform
	settings Settings
	mu       sync.Mutex

	status          Status
	devices         []DeviceDescriptor
	currentDeviceID string
	stream          Stream
	lastErr         error
}

// NewManager は新しいManagerを作成する
func NewManager(platform Platform, settings Settings) *Manager {
	if settings.Width <= 0 || settings.Height <= 0 {
		defaults := DefaultSettings()
		settings.Width = defaults.Width
		settings.Height = defaults.Height
	}
	if settings.JPEGQuality <= 0 || settings.JPEGQuality > 100 {
		settings.JPEGQuality = DefaultSettings().JPEGQuality
	}

	return &Manager{
		platform: platform,
		settings: settings,
		status:   StatusInactive,
	}
}

// EnumerateDevices はキャプチャデバイスを列挙し、未選択なら既定のデバイスを選ぶ
func (m *Manager) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	devices, err := m.platform.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceEnumeration, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices = append([]DeviceDescriptor(nil), devices...)
	if m.currentDeviceID == "" && len(m.devices) > 0 {
		m.currentDeviceID = preferredDevice(m.devices).ID
		log.Printf("カメラを選択しました: %s", m.currentDeviceID)
	}

	return append([]DeviceDescriptor(nil), m.devices...), nil
}

// Start は選択中のデバイスでストリームを開始する
// 既に動作中の場合は停止してから開始し直す
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusActive {
		m.stopLocked()
	}

	return m.startLocked(ctx)
}

// Stop はストリームを解放する。停止中に呼んでも何もしない
func (m *Manager) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	return nil
}

// Close は所有者が破棄時に呼ぶ後始末
func (m *Manager) Close(ctx context.Context) error {
	return m.Stop(ctx)
}

// SwitchDevice は列挙順で次のデバイスに切り替える
// 動作中なら新しいデバイスで再接続し、停止中なら選択だけを更新する
func (m *Manager) SwitchDevice(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.devices) < 2 {
		return nil
	}

	current := -1
	for i, d := range m.devices {
		if d.ID == m.currentDeviceID {
			current = i
			break
		}
	}
	next := (current + 1) % len(m.devices)
	m.currentDeviceID = m.devices[next].ID
	log.Printf("カメラを切り替えます: %s", m.currentDeviceID)

	if m.status != StatusActive {
		return nil
	}

	m.stopLocked()
	return m.startLocked(ctx)
}

// CaptureFrame は現在の映像フレームをJPEGとして取得する
func (m *Manager) CaptureFrame(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusActive || m.stream == nil {
		return nil, ErrNotActive
	}

	img, err := m.stream.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("フレームの取得に失敗: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.settings.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}

	bounds := img.Bounds()
	return &Frame{
		Data:       buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		MimeType:   "image/jpeg",
		DeviceID:   m.stream.DeviceID(),
		CapturedAt: time.Now(),
	}, nil
}

// Status は現在の状態を返す
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError は直近の開始失敗の原因を返す
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// CurrentDeviceID は選択中のデバイスIDを返す
func (m *Manager) CurrentDeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentDeviceID
}

// Devices は最後に列挙したデバイス一覧を返す
func (m *Manager) Devices() []DeviceDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeviceDescriptor(nil), m.devices...)
}

// startLocked はストリームを開く（ロック済み前提）
func (m *Manager) startLocked(ctx context.Context) error {
	constraints := Constraints{
		DeviceID: m.currentDeviceID,
		Width:    m.settings.Width,
		Height:   m.settings.Height,
	}
	if constraints.DeviceID == "" {
		constraints.FacingMode = FacingEnvironment
	}

	stream, err := m.platform.OpenStream(ctx, constraints)
	if err != nil {
		m.status = StatusError
		m.lastErr = err
		log.Printf("カメラの開始に失敗しました: %v", err)
		return fmt.Errorf("%w: %v", ErrCameraAccess, err)
	}

	m.stream = stream
	if m.currentDeviceID == "" {
		m.currentDeviceID = stream.DeviceID()
	}
	m.status = StatusActive
	m.lastErr = nil
	log.Printf("カメラを開始しました: %s", stream.DeviceID())
	return nil
}

// stopLocked は全トラックを停止する（ロック済み前提）
func (m *Manager) stopLocked() {
	if m.status == StatusInactive && m.stream == nil {
		return
	}

	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			log.Printf("ストリームの解放に失敗: %v", err)
		}
		m.stream = nil
	}
	m.status = StatusInactive
	log.Println("カメラを停止しました")
}

// preferredDevice は背面カメラを優先して既定のデバイスを選ぶ
func preferredDevice(devices []DeviceDescriptor) DeviceDescriptor {
	for _, d := range devices {
		if isRearLabel(d.Label) {
			return d
		}
	}
	return devices[0]
}

// isRearLabel はラベルが背面カメラを示すか判定する
func isRearLabel(label string) bool {
	lower := strings.ToLower(label)
	return strings.Contains(lower, "back") || strings.Contains(lower, "rear")
}
