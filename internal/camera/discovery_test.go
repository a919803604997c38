package camera

import (
	"context"
	"testing"
	"time"
)

func TestLinuxPlatform_EnumerateDevices(t *testing.T) {
	ctx := context.Background()
	platform := NewLinuxPlatform(time.Second)

	devices, err := platform.EnumerateDevices(ctx)
	if err != nil {
		t.Fatalf("EnumerateDevices failed: %v", err)
	}

	// デバイスが見つからない場合もあるため、エラーがないことを確認
	t.Logf("Found %d video devices", len(devices))
	for _, device := range devices {
		t.Logf("Device: %s (%s)", device.ID, device.Label)
	}
}

func TestLinuxPlatform_IsDeviceAvailable(t *testing.T) {
	ctx := context.Background()
	platform := NewLinuxPlatform(time.Second)

	// 存在しないデバイスをテスト
	if platform.IsDeviceAvailable(ctx, "/dev/video999") {
		t.Error("Expected non-existent device to be unavailable")
	}

	// 無効なパスをテスト
	if platform.IsDeviceAvailable(ctx, "/invalid/path") {
		t.Error("Expected invalid path to be unavailable")
	}
}

func TestLinuxPlatform_OpenStreamUnavailableDevice(t *testing.T) {
	platform := NewLinuxPlatform(time.Second)

	_, err := platform.OpenStream(context.Background(), Constraints{DeviceID: "/dev/video999", Width: 640, Height: 480})
	if err == nil {
		t.Fatal("Expected error for unavailable device")
	}
}

func TestParseCardType(t *testing.T) {
	testCases := []struct {
		name   string
		output string
		want   string
	}{
		{
			name: "通常の出力",
			output: `Driver Info:
	Driver name      : uvcvideo
	Card type        : HD Pro Webcam C920
	Bus info         : usb-0000:00:14.0-1`,
			want: "HD Pro Webcam C920",
		},
		{
			name:   "コロンを含む名前",
			output: "\tCard type        : Integrated Camera: Integrated C\n",
			want:   "Integrated Camera: Integrated C",
		},
		{
			name:   "Card typeなし",
			output: "Driver name : uvcvideo\n",
			want:   "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseCardType(tc.output); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractDeviceNumber(t *testing.T) {
	testCases := []struct {
		device string
		want   int
	}{
		{"/dev/video0", 0},
		{"/dev/video2", 2},
		{"/dev/video12", 12},
		{"/dev/null", 0},
	}

	for _, tc := range testCases {
		if got := extractDeviceNumber(tc.device); got != tc.want {
			t.Errorf("extractDeviceNumber(%s): expected %d, got %d", tc.device, tc.want, got)
		}
	}
}

func TestIsV4L2Device(t *testing.T) {
	testCases := []struct {
		device string
		want   bool
	}{
		{"/dev/video0", true},
		{"/dev/video10", true},
		{"/dev/video", false},
		{"/dev/videoX", false},
		{"/tmp/dev/video0", false},
	}

	for _, tc := range testCases {
		if got := isV4L2Device(tc.device); got != tc.want {
			t.Errorf("isV4L2Device(%s): expected %v, got %v", tc.device, tc.want, got)
		}
	}
}

func TestHasColorFormat(t *testing.T) {
	if !hasColorFormat("[0]: 'YUYV' (YUYV 4:2:2)") {
		t.Error("Expected YUYV to be a color format")
	}
	if !hasColorFormat("[1]: 'MJPG' (Motion-JPEG, compressed)") {
		t.Error("Expected MJPG to be a color format")
	}
	if hasColorFormat("[0]: 'GREY' (8-bit Greyscale)") {
		t.Error("Expected GREY not to be a color format")
	}
}

func TestPreferredDevice(t *testing.T) {
	testCases := []struct {
		name    string
		devices []DeviceDescriptor
		want    string
	}{
		{
			name:    "rearを含むラベル",
			devices: []DeviceDescriptor{{ID: "1", Label: "front"}, {ID: "2", Label: "REAR camera"}},
			want:    "2",
		},
		{
			name:    "backを含むラベル",
			devices: []DeviceDescriptor{{ID: "1", Label: "Camera 0, Facing front"}, {ID: "2", Label: "Camera 1, Facing back"}},
			want:    "2",
		},
		{
			name:    "該当なしは先頭",
			devices: []DeviceDescriptor{{ID: "1", Label: "USB"}, {ID: "2", Label: "HDMI"}},
			want:    "1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preferredDevice(tc.devices).ID; got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}
