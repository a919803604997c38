package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"platescan/internal/camera"
	"platescan/internal/detection"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func testResult(withImage bool) *detection.Result {
	result := &detection.Result{
		PlateNumber: "AB12CD",
		Confidence:  92.4,
		Timestamp:   time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
	}
	if withImage {
		result.Image = &camera.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, MimeType: "image/jpeg"}
	}
	return result
}

func TestTelegramNotifier_SendsPhoto(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier(sender, 42)

	require.NoError(t, notifier.OnDetection(context.Background(), testResult(true)))
	require.Len(t, sender.sent, 1)

	photo, ok := sender.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok, "expected PhotoConfig, got %T", sender.sent[0])
	require.Equal(t, int64(42), photo.ChatID)
	require.Contains(t, photo.Caption, "AB12CD")

	file, ok := photo.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	require.Equal(t, "plate_20240502_083000.jpg", file.Name)
	require.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, file.Bytes)
}

func TestTelegramNotifier_SendsTextWithoutImage(t *testing.T) {
	sender := &fakeSender{}
	notifier := NewNotifier(sender, 42)

	require.NoError(t, notifier.OnDetection(context.Background(), testResult(false)))

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Equal(t, Caption(testResult(false)), msg.Text)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
	notifier := NewNotifier(sender, 42)

	err := notifier.OnDetection(context.Background(), testResult(false))
	require.ErrorContains(t, err, "Forbidden")
}

func TestCaption(t *testing.T) {
	require.Equal(t, "ナンバー: AB12CD\n信頼度: 92%\n時刻: 2024-05-02 08:30:00", Caption(testResult(false)))
}
