package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var deviceNumberPattern = regexp.MustCompile(`video(\d+)`)

// LinuxPlatform はLinux環境のV4L2デバイスを扱うPlatform実装
type LinuxPlatform struct {
	// FrameTimeout は最初のフレームを待つ時間
	FrameTimeout time.Duration

	pattern string
}

// NewLinuxPlatform は新しいLinuxPlatformを作成する
func NewLinuxPlatform(frameTimeout time.Duration) *LinuxPlatform {
	if frameTimeout <= 0 {
		frameTimeout = 10 * time.Second
	}
	return &LinuxPlatform{
		FrameTimeout: frameTimeout,
		pattern:      "/dev/video*",
	}
}

// EnumerateDevices はシステム内のカラーカメラを列挙する
func (p *LinuxPlatform) EnumerateDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	matches, err := filepath.Glob(p.pattern)
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	devices := make([]DeviceDescriptor, 0, len(matches))
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !p.IsDeviceAvailable(ctx, match) {
			continue
		}
		if !p.isMainCamera(ctx, match) {
			continue
		}

		devices = append(devices, DeviceDescriptor{
			ID:    match,
			Label: p.deviceLabel(ctx, match),
		})
	}

	return devices, nil
}

// OpenStream はffmpegでMJPEGストリームを開始する
func (p *LinuxPlatform) OpenStream(ctx context.Context, constraints Constraints) (Stream, error) {
	device := constraints.DeviceID
	if device == "" {
		devices, err := p.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("利用可能なカメラがありません")
		}
		device = devices[0].ID
		if constraints.FacingMode == FacingEnvironment {
			device = preferredDevice(devices).ID
		}
	}

	if !p.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	capturer := NewV4L2Capturer(device, constraints.Width, constraints.Height, 15)
	return openFFmpegStream(capturer, p.FrameTimeout)
}

// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
func (p *LinuxPlatform) IsDeviceAvailable(_ context.Context, device string) bool {
	if !isV4L2Device(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()

	return true
}

// deviceLabel はv4l2-ctlの名前、なければデバイス番号から表示名を作る
func (p *LinuxPlatform) deviceLabel(ctx context.Context, device string) string {
	if name := getV4L2DeviceName(ctx, device); name != "" {
		return name
	}
	return fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
}

// isMainCamera はカラー出力を持つ最初のチャンネルかどうかを判定する
// 同じ物理カメラのメタデータ用ノードは除外する
func (p *LinuxPlatform) isMainCamera(ctx context.Context, device string) bool {
	formats, err := listFormats(ctx, device)
	if err != nil {
		return false
	}
	if !hasColorFormat(formats) {
		return false
	}

	name := getV4L2DeviceName(ctx, device)
	if name == "" {
		return true
	}

	for i := 0; i < extractDeviceNumber(device); i++ {
		sibling := fmt.Sprintf("/dev/video%d", i)
		if !p.IsDeviceAvailable(ctx, sibling) {
			continue
		}
		siblingFormats, err := listFormats(ctx, sibling)
		if err != nil || !hasColorFormat(siblingFormats) {
			continue
		}
		if getV4L2DeviceName(ctx, sibling) == name {
			return false
		}
	}

	return true
}

// hasColorFormat はYUYVまたはMJPGをサポートしているか判定する
func hasColorFormat(formats string) bool {
	return strings.Contains(formats, "YUYV") || strings.Contains(formats, "MJPG")
}

// listFormats はv4l2-ctlでサポートフォーマットを取得する
func listFormats(ctx context.Context, device string) (string, error) {
	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext").Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// getV4L2DeviceName はv4l2-ctlの "Card type" からカメラ名を取得する
func getV4L2DeviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err != nil {
		return ""
	}
	return parseCardType(string(output))
}

// parseCardType はv4l2-ctl --info の出力からカード名を抜き出す
func parseCardType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// isV4L2Device は /dev/videoXX 形式のパスか判定する
func isV4L2Device(device string) bool {
	matched, _ := regexp.MatchString(`^/dev/video\d+$`, device)
	return matched
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := deviceNumberPattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return num
}
