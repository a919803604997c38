package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// MockPlatform はテスト用のモックPlatform実装
type MockPlatform struct {
	mu      sync.Mutex
	devices []DeviceDescriptor

	// テスト制御用
	enumerateErr error
	openErr      error

	opened      []Constraints
	openStreams int
	maxOpen     int
	closed      int
}

// NewMockPlatform は新しいMockPlatformを作成する
func NewMockPlatform(devices ...DeviceDescriptor) *MockPlatform {
	return &MockPlatform{devices: devices}
}

// EnumerateDevices はモックデバイス一覧を返す
func (m *MockPlatform) EnumerateDevices(_ context.Context) ([]DeviceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enumerateErr != nil {
		return nil, m.enumerateErr
	}
	return append([]DeviceDescriptor(nil), m.devices...), nil
}

// OpenStream はモックストリームを返す
func (m *MockPlatform) OpenStream(_ context.Context, constraints Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opened = append(m.opened, constraints)
	if m.openErr != nil {
		return nil, m.openErr
	}

	id := constraints.DeviceID
	if id == "" {
		if len(m.devices) == 0 {
			return nil, fmt.Errorf("モック: デバイスがありません")
		}
		id = preferredDevice(m.devices).ID
	}

	m.openStreams++
	if m.openStreams > m.maxOpen {
		m.maxOpen = m.openStreams
	}

	return &MockStream{
		platform: m,
		id:       id,
		width:    constraints.Width,
		height:   constraints.Height,
	}, nil
}

// SetEnumerateError はテスト用に列挙失敗を設定する
func (m *MockPlatform) SetEnumerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumerateErr = err
}

// SetOpenError はテスト用にストリーム取得失敗を設定する
func (m *MockPlatform) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// OpenRequests はOpenStreamに渡された条件の履歴を返す
func (m *MockPlatform) OpenRequests() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Constraints(nil), m.opened...)
}

// OpenStreams は現在開いているストリーム数を返す
func (m *MockPlatform) OpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openStreams
}

// MaxConcurrentStreams は同時に開かれたストリーム数の最大値を返す
func (m *MockPlatform) MaxConcurrentStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxOpen
}

// ClosedStreams は閉じられたストリーム数を返す
func (m *MockPlatform) ClosedStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockStream は単色画像を返すモックストリーム
type MockStream struct {
	platform *MockPlatform
	id       string
	width    int
	height   int

	mu     sync.Mutex
	closed bool
}

// DeviceID はデバイスIDを返す
func (s *MockStream) DeviceID() string {
	return s.id
}

// Snapshot は指定解像度の単色画像を返す
func (s *MockStream) Snapshot(_ context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("モック: ストリームは閉じられています")
	}

	width, height := s.width, s.height
	if width <= 0 || height <= 0 {
		width, height = 64, 36
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 40, A: 255})
		}
	}
	return img, nil
}

// Close はストリームを閉じる
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.platform.mu.Lock()
	s.platform.openStreams--
	s.platform.closed++
	s.platform.mu.Unlock()
	return nil
}
