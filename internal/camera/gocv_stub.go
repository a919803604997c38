//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"errors"
)

// GoCVAvailable はOpenCVサポート付きでビルドされたかを示す
const GoCVAvailable = false

var errGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVPlatform はgocvタグなしビルド用のスタブ
type GoCVPlatform struct {
	MaxDevices int
}

// NewGoCVPlatform はスタブを作成する（OpenCVなし）
func NewGoCVPlatform() *GoCVPlatform {
	return &GoCVPlatform{MaxDevices: 4}
}

// EnumerateDevices はgocvタグなしビルドではエラーを返す
func (p *GoCVPlatform) EnumerateDevices(_ context.Context) ([]DeviceDescriptor, error) {
	return nil, errGoCVDisabled
}

// OpenStream はgocvタグなしビルドではエラーを返す
func (p *GoCVPlatform) OpenStream(_ context.Context, _ Constraints) (Stream, error) {
	return nil, errGoCVDisabled
}
