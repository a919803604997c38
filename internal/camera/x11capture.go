package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// X11Capturer はX11画面キャプチャを行う
type X11Capturer struct {
	display string
	width   int
	height  int
	fps     int
}

// NewX11Capturer は新しいX11Capturerを作成する
func NewX11Capturer(display string, width, height, fps int) *X11Capturer {
	return &X11Capturer{
		display: display,
		width:   width,
		height:  height,
		fps:     fps,
	}
}

// DevicePath はキャプチャ対象のディスプレイを返す
func (c *X11Capturer) DevicePath() string {
	return c.display
}

// IsDeviceAvailable はX11ディスプレイが利用可能かチェックする
func (c *X11Capturer) IsDeviceAvailable(ctx context.Context) bool {
	// xdpyinfoコマンドでX11ディスプレイの利用可能性をチェック
	cmd := exec.CommandContext(ctx, "xdpyinfo", "-display", c.display)
	return cmd.Run() == nil
}

// StartStream はX11画面キャプチャのストリームを開始する
func (c *X11Capturer) StartStream(ctx context.Context, onFrame func([]byte)) error {
	return streamMJPEG(ctx, onFrame,
		"-f", "x11grab",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.display,
		"-vf", "format=yuv420p",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// X11Platform は画面（防犯カメラのビューアなど）をキャプチャデバイスとして扱う
type X11Platform struct {
	Display      string
	FrameTimeout time.Duration
}

// NewX11Platform は新しいX11Platformを作成する
// display が空なら DISPLAY 環境変数を使う
func NewX11Platform(display string, frameTimeout time.Duration) *X11Platform {
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = ":0.0"
	}
	if frameTimeout <= 0 {
		frameTimeout = 10 * time.Second
	}
	return &X11Platform{Display: display, FrameTimeout: frameTimeout}
}

// EnumerateDevices はディスプレイを1台のデバイスとして返す
func (p *X11Platform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	capturer := NewX11Capturer(p.Display, 0, 0, 0)
	if !capturer.IsDeviceAvailable(ctx) {
		return []DeviceDescriptor{}, nil
	}
	return []DeviceDescriptor{{ID: p.Display, Label: "X11 Screen " + p.Display}}, nil
}

// OpenStream は画面のMJPEGストリームを開始する
func (p *X11Platform) OpenStream(ctx context.Context, constraints Constraints) (Stream, error) {
	display := constraints.DeviceID
	if display == "" {
		display = p.Display
	}

	capturer := NewX11Capturer(display, constraints.Width, constraints.Height, 5)
	if !capturer.IsDeviceAvailable(ctx) {
		return nil, fmt.Errorf("ディスプレイが利用できません: %s", display)
	}
	return openFFmpegStream(capturer, p.FrameTimeout)
}
