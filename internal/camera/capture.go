package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// V4L2Capturer はffmpegを使ってV4L2デバイスから画像を取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
	}
}

// DevicePath はキャプチャ対象のデバイスを返す
func (c *V4L2Capturer) DevicePath() string {
	return c.devicePath
}

// CaptureFrameAsJPEG は1フレームだけ撮影してJPEGで返す
// 連続キャプチャが止まった後の静止画取得に使う
func (c *V4L2Capturer) CaptureFrameAsJPEG(ctx context.Context) ([]byte, error) {
	var frame []byte
	err := streamMJPEG(ctx, func(b []byte) {
		if frame == nil {
			frame = b
		}
	},
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-i", c.devicePath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "2",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("静止画の取得に失敗 (%s): %w", c.devicePath, err)
	}
	if frame == nil {
		return nil, fmt.Errorf("静止画が取得できませんでした: %s", c.devicePath)
	}
	return frame, nil
}

// StartStream は連続キャプチャを開始し、完全なJPEGフレームを onFrame に渡す
// ctx がキャンセルされるか ffmpeg が終了するまでブロックする
func (c *V4L2Capturer) StartStream(ctx context.Context, onFrame func([]byte)) error {
	return streamMJPEG(ctx, onFrame,
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// streamMJPEG はffmpegを起動し、標準出力のMJPEGをフレームに分割して onFrame に渡す
func streamMJPEG(ctx context.Context, onFrame func([]byte), args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}
	defer func() {
		_ = cmd.Wait() // コンテキストキャンセル時のエラーは無視
	}()

	var splitter jpegSplitter
	buffer := make([]byte, 64*1024)
	for {
		n, err := stdout.Read(buffer)
		if n > 0 {
			for _, frame := range splitter.Feed(buffer[:n]) {
				onFrame(frame)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("フレーム読み取りエラー: %w", err)
		}
	}
}

// jpegSplitter はMJPEGのバイト列をSOI/EOIマーカーでフレームに分割する
type jpegSplitter struct {
	buf bytes.Buffer
}

// Feed はデータを追加し、完成したフレームを返す
func (s *jpegSplitter) Feed(p []byte) [][]byte {
	s.buf.Write(p)

	var frames [][]byte
	for {
		data := s.buf.Bytes()
		start := bytes.Index(data, jpegStart)
		if start == -1 {
			// マーカーの片割れだけ残す
			if len(data) > 0 && data[len(data)-1] == 0xFF {
				s.buf.Reset()
				s.buf.WriteByte(0xFF)
			} else {
				s.buf.Reset()
			}
			return frames
		}

		end := bytes.Index(data[start+2:], jpegEnd)
		if end == -1 {
			if start > 0 {
				rest := append([]byte(nil), data[start:]...)
				s.buf.Reset()
				s.buf.Write(rest)
			}
			return frames
		}

		end += start + 2 + len(jpegEnd)
		frames = append(frames, append([]byte(nil), data[start:end]...))

		rest := append([]byte(nil), data[end:]...)
		s.buf.Reset()
		s.buf.Write(rest)
	}
}
