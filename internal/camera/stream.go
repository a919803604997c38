package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStreamEnded はffmpegのストリームが終了し、静止画の取得手段もないことを示す
var ErrStreamEnded = errors.New("ストリームが終了しました")

// frameStreamer はMJPEGフレームを連続で送り出すキャプチャ
type frameStreamer interface {
	DevicePath() string
	StartStream(ctx context.Context, onFrame func([]byte)) error
}

// stillCapturer は1フレームだけ撮影できるキャプチャ
type stillCapturer interface {
	CaptureFrameAsJPEG(ctx context.Context) ([]byte, error)
}

// ffmpegStream はffmpegのMJPEGストリームを保持し、最新フレームを提供する
// ストリームが途中で終了した後は、対応していれば静止画撮影に切り替える
type ffmpegStream struct {
	capturer frameStreamer

	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	latestMu    sync.RWMutex
	latestFrame []byte
	firstFrame  chan struct{}
	firstOnce   sync.Once
	closeOnce   sync.Once
}

// openFFmpegStream はストリーミングを開始し、最初のフレームが届くまで待つ
func openFFmpegStream(capturer frameStreamer, frameTimeout time.Duration) (*ffmpegStream, error) {
	// ストリームの寿命は呼び出し元のリクエストから切り離す
	streamCtx, cancel := context.WithCancel(context.Background())
	s := &ffmpegStream{
		capturer:   capturer,
		cancel:     cancel,
		done:       make(chan struct{}),
		firstFrame: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := capturer.StartStream(streamCtx, s.storeFrame); err != nil {
			log.Printf("ストリーミングが終了しました (%s): %v", capturer.DevicePath(), err)
		}

		// 終了後に古いフレームを返さない
		s.latestMu.Lock()
		s.latestFrame = nil
		s.latestMu.Unlock()
	}()

	select {
	case <-s.firstFrame:
		return s, nil
	case <-s.done:
		cancel()
		return nil, fmt.Errorf("ストリームが開始前に終了しました: %s", capturer.DevicePath())
	case <-time.After(frameTimeout):
		_ = s.Close()
		return nil, fmt.Errorf("最初のフレームがタイムアウトしました: %s", capturer.DevicePath())
	}
}

// storeFrame は最新フレームを保存する
func (s *ffmpegStream) storeFrame(frame []byte) {
	s.latestMu.Lock()
	s.latestFrame = frame
	s.latestMu.Unlock()

	s.firstOnce.Do(func() { close(s.firstFrame) })
}

// DeviceID はデバイスパスを返す
func (s *ffmpegStream) DeviceID() string {
	return s.capturer.DevicePath()
}

// Snapshot は最新フレームをデコードして返す
func (s *ffmpegStream) Snapshot(ctx context.Context) (image.Image, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("ストリームは閉じられています: %s", s.DeviceID())
	}

	select {
	case <-s.done:
		return s.stillSnapshot(ctx)
	default:
	}

	s.latestMu.RLock()
	frame := s.latestFrame
	s.latestMu.RUnlock()

	if frame == nil {
		return nil, fmt.Errorf("フレームがまだ取得されていません")
	}
	return decodeJPEG(frame)
}

// stillSnapshot はストリーム終了後に1フレームだけ撮影する
func (s *ffmpegStream) stillSnapshot(ctx context.Context) (image.Image, error) {
	still, ok := s.capturer.(stillCapturer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamEnded, s.DeviceID())
	}

	frame, err := still.CaptureFrameAsJPEG(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamEnded, err)
	}
	return decodeJPEG(frame)
}

// Close はffmpegを停止し、ゴルーチンの終了を待つ
func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		<-s.done
	})
	return nil
}

func decodeJPEG(frame []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}
	return img, nil
}
