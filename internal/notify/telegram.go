// Package notify は受理された検出結果を外部に通知する
package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"platescan/internal/detection"
)

// Sender はTelegram Bot APIの送信部分
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier は検出結果をTelegramのチャットに送る
type TelegramNotifier struct {
	sender Sender
	chatID int64
}

// NewTelegramNotifier はBotトークンからTelegramNotifierを作成する
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("Telegram Botの作成に失敗: %w", err)
	}
	log.Printf("Telegram Botに接続しました: @%s", bot.Self.UserName)
	return NewNotifier(bot, chatID), nil
}

// NewNotifier は任意のSenderからTelegramNotifierを作成する
func NewNotifier(sender Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

// OnDetection は画像があれば写真として、なければテキストで送る
func (n *TelegramNotifier) OnDetection(_ context.Context, result *detection.Result) error {
	caption := Caption(result)

	var msg tgbotapi.Chattable
	if result.Image != nil && len(result.Image.Data) > 0 {
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{
			Name:  fmt.Sprintf("plate_%s.jpg", result.Timestamp.Format("20060102_150405")),
			Bytes: result.Image.Data,
		})
		photo.Caption = caption
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(n.chatID, caption)
	}

	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("Telegramへの送信に失敗: %w", err)
	}
	return nil
}

// Caption は通知本文を作る
func Caption(result *detection.Result) string {
	return fmt.Sprintf("ナンバー: %s\n信頼度: %.0f%%\n時刻: %s",
		result.PlateNumber, result.Confidence, result.Timestamp.Format("2006-01-02 15:04:05"))
}
