//go:build gocv
// +build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// GoCVAvailable はOpenCVサポート付きでビルドされたかを示す
const GoCVAvailable = true

// GoCVPlatform はOpenCVのVideoCaptureを使うPlatform実装
type GoCVPlatform struct {
	// MaxDevices は列挙時に試すデバイス番号の上限
	MaxDevices int
}

// NewGoCVPlatform は新しいGoCVPlatformを作成する
func NewGoCVPlatform() *GoCVPlatform {
	return &GoCVPlatform{MaxDevices: 4}
}

// EnumerateDevices は開けるデバイス番号を順に試して列挙する
func (p *GoCVPlatform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	var devices []DeviceDescriptor
	for i := 0; i < p.MaxDevices; i++ {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		opened := vc.IsOpened()
		_ = vc.Close()
		if !opened {
			continue
		}

		devices = append(devices, DeviceDescriptor{
			ID:    strconv.Itoa(i),
			Label: fmt.Sprintf("カメラ %d", i),
		})
	}
	return devices, nil
}

// OpenStream はVideoCaptureを開いて解像度を設定する
func (p *GoCVPlatform) OpenStream(ctx context.Context, constraints Constraints) (Stream, error) {
	device := constraints.DeviceID
	if device == "" {
		devices, err := p.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("利用可能なカメラがありません")
		}
		device = preferredDevice(devices).ID
	}

	index, err := strconv.Atoi(device)
	if err != nil {
		return nil, fmt.Errorf("無効なデバイス番号: %s", device)
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("VideoCaptureの作成に失敗: %w", err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("VideoCaptureが開かれていません: %s", device)
	}

	if constraints.Width > 0 && constraints.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(constraints.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(constraints.Height))
	}

	return &gocvStream{id: device, capture: vc}, nil
}

// gocvStream はOpenCVのVideoCaptureをStreamとして扱う
type gocvStream struct {
	id      string
	capture *gocv.VideoCapture
	mu      sync.Mutex
}

// DeviceID はデバイス番号を返す
func (s *gocvStream) DeviceID() string {
	return s.id
}

// Snapshot は1フレームを読み取ってimage.Imageに変換する
func (s *gocvStream) Snapshot(_ context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, fmt.Errorf("ストリームは閉じられています")
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("フレームの読み取りに失敗: %s", s.id)
	}

	return mat.ToImage()
}

// Close はVideoCaptureを解放する
func (s *gocvStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
