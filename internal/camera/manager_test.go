package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
)

func newTestManager(devices ...DeviceDescriptor) (*Manager, *MockPlatform) {
	platform := NewMockPlatform(devices...)
	manager := NewManager(platform, Settings{Width: 64, Height: 36, JPEGQuality: 80})
	return manager, platform
}

func TestManager_EnumeratePrefersRearCamera(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(
		DeviceDescriptor{ID: "front", Label: "Front Camera"},
		DeviceDescriptor{ID: "rear", Label: "Camera 2, facing BACK"},
	)

	devices, err := manager.EnumerateDevices(ctx)
	if err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}
	if got := manager.CurrentDeviceID(); got != "rear" {
		t.Errorf("Expected rear camera to be selected, got %s", got)
	}
}

func TestManager_EnumerateFallsBackToFirstDevice(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(
		DeviceDescriptor{ID: "usb0", Label: "USB Camera"},
		DeviceDescriptor{ID: "usb1", Label: "Integrated Webcam"},
	)

	if _, err := manager.EnumerateDevices(ctx); err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if got := manager.CurrentDeviceID(); got != "usb0" {
		t.Errorf("Expected first device to be selected, got %s", got)
	}
}

func TestManager_EnumerateKeepsExistingSelection(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(
		DeviceDescriptor{ID: "a", Label: "Rear"},
		DeviceDescriptor{ID: "b", Label: "Front"},
	)

	if _, err := manager.EnumerateDevices(ctx); err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if err := manager.SwitchDevice(ctx); err != nil {
		t.Fatalf("SwitchDevice failed: %v", err)
	}
	if _, err := manager.EnumerateDevices(ctx); err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if got := manager.CurrentDeviceID(); got != "b" {
		t.Errorf("Expected selection to survive re-enumeration, got %s", got)
	}
}

func TestManager_EnumerateError(t *testing.T) {
	manager, platform := newTestManager()
	platform.SetEnumerateError(errors.New("permission denied"))

	_, err := manager.EnumerateDevices(context.Background())
	if !errors.Is(err, ErrDeviceEnumeration) {
		t.Fatalf("Expected ErrDeviceEnumeration, got %v", err)
	}
}

func TestManager_StartStop(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})

	if _, err := manager.EnumerateDevices(ctx); err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if manager.Status() != StatusActive {
		t.Errorf("Expected status active, got %s", manager.Status())
	}

	requests := platform.OpenRequests()
	if len(requests) != 1 || requests[0].DeviceID != "cam0" {
		t.Fatalf("Unexpected open requests: %+v", requests)
	}
	if requests[0].Width != 64 || requests[0].Height != 36 {
		t.Errorf("Unexpected resolution: %dx%d", requests[0].Width, requests[0].Height)
	}

	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if manager.Status() != StatusInactive {
		t.Errorf("Expected status inactive, got %s", manager.Status())
	}
	if platform.OpenStreams() != 0 {
		t.Errorf("Expected all streams to be released, got %d open", platform.OpenStreams())
	}
}

func TestManager_StartWithoutSelectionUsesEnvironmentFacing(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Close(ctx) }()

	requests := platform.OpenRequests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 open request, got %d", len(requests))
	}
	if requests[0].DeviceID != "" || requests[0].FacingMode != FacingEnvironment {
		t.Errorf("Expected environment facing request, got %+v", requests[0])
	}
}

func TestManager_StartFailure(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})
	platform.SetOpenError(errors.New("NotAllowedError"))

	err := manager.Start(ctx)
	if !errors.Is(err, ErrCameraAccess) {
		t.Fatalf("Expected ErrCameraAccess, got %v", err)
	}
	if manager.Status() != StatusError {
		t.Errorf("Expected status error, got %s", manager.Status())
	}
	if manager.LastError() == nil {
		t.Error("Expected last error to be recorded")
	}

	// エラー状態からの停止は inactive に戻す
	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if manager.Status() != StatusInactive {
		t.Errorf("Expected status inactive, got %s", manager.Status())
	}
}

func TestManager_StartWhileActiveRestarts(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	defer func() { _ = manager.Close(ctx) }()

	if platform.ClosedStreams() != 1 {
		t.Errorf("Expected previous stream to be closed, got %d closed", platform.ClosedStreams())
	}
	if platform.MaxConcurrentStreams() != 1 {
		t.Errorf("Expected at most one open stream, got %d", platform.MaxConcurrentStreams())
	}
}

func TestManager_StopFromInactiveIsNoop(t *testing.T) {
	manager, platform := newTestManager()

	if err := manager.Stop(context.Background()); err != nil {
		t.Fatalf("Stop from inactive returned error: %v", err)
	}
	if manager.Status() != StatusInactive {
		t.Errorf("Expected status inactive, got %s", manager.Status())
	}
	if platform.ClosedStreams() != 0 {
		t.Errorf("Expected no stream to be closed, got %d", platform.ClosedStreams())
	}
}

func TestManager_SwitchDevice(t *testing.T) {
	testCases := []struct {
		name     string
		devices  []DeviceDescriptor
		switches int
		want     string
	}{
		{
			name:     "1台のみ",
			devices:  []DeviceDescriptor{{ID: "only", Label: "Camera"}},
			switches: 1,
			want:     "only",
		},
		{
			name:     "次のデバイス",
			devices:  []DeviceDescriptor{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}},
			switches: 1,
			want:     "b",
		},
		{
			name:     "末尾から先頭に戻る",
			devices:  []DeviceDescriptor{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
			switches: 2,
			want:     "a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			manager, platform := newTestManager(tc.devices...)
			if _, err := manager.EnumerateDevices(ctx); err != nil {
				t.Fatalf("EnumerateDevices failed: %v", err)
			}

			for i := 0; i < tc.switches; i++ {
				if err := manager.SwitchDevice(ctx); err != nil {
					t.Fatalf("SwitchDevice failed: %v", err)
				}
			}

			if got := manager.CurrentDeviceID(); got != tc.want {
				t.Errorf("Expected device %s, got %s", tc.want, got)
			}
			// 停止中の切り替えでは再接続しない
			if manager.Status() != StatusInactive {
				t.Errorf("Expected status inactive, got %s", manager.Status())
			}
			if len(platform.OpenRequests()) != 0 {
				t.Errorf("Expected no stream to be opened, got %d", len(platform.OpenRequests()))
			}
		})
	}
}

func TestManager_SwitchDeviceWhileActiveReconnects(t *testing.T) {
	ctx := context.Background()
	manager, platform := newTestManager(
		DeviceDescriptor{ID: "a", Label: "A"},
		DeviceDescriptor{ID: "b", Label: "B"},
	)
	if _, err := manager.EnumerateDevices(ctx); err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Close(ctx) }()

	if err := manager.SwitchDevice(ctx); err != nil {
		t.Fatalf("SwitchDevice failed: %v", err)
	}

	if manager.Status() != StatusActive {
		t.Errorf("Expected status active, got %s", manager.Status())
	}
	requests := platform.OpenRequests()
	if len(requests) != 2 || requests[1].DeviceID != "b" {
		t.Fatalf("Expected reconnect to b, got %+v", requests)
	}
	if platform.MaxConcurrentStreams() != 1 {
		t.Errorf("Expected stop before start, got %d concurrent streams", platform.MaxConcurrentStreams())
	}
}

func TestManager_CaptureFrame(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})

	if _, err := manager.CaptureFrame(ctx); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Expected ErrNotActive before start, got %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = manager.Close(ctx) }()

	frame, err := manager.CaptureFrame(ctx)
	if err != nil {
		t.Fatalf("CaptureFrame failed: %v", err)
	}
	if frame.Width != 64 || frame.Height != 36 {
		t.Errorf("Expected 64x36 frame, got %dx%d", frame.Width, frame.Height)
	}
	if frame.MimeType != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %s", frame.MimeType)
	}
	if frame.DeviceID != "cam0" {
		t.Errorf("Expected device cam0, got %s", frame.DeviceID)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil {
		t.Fatalf("Frame is not a valid JPEG: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 36 {
		t.Errorf("Unexpected encoded size: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestManager_CaptureAfterStop(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(DeviceDescriptor{ID: "cam0", Label: "Camera"})

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := manager.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	frame, err := manager.CaptureFrame(ctx)
	if frame != nil || !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected no frame after stop, got %v, %v", frame, err)
	}
}
