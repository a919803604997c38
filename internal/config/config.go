package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile は CONFIG_FILE 未指定時に探す設定ファイル
const DefaultConfigFile = "config.yaml"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	OCR       OCRConfig       `yaml:"ocr"`
	Detection DetectionConfig `yaml:"detection"`
	Storage   StorageConfig   `yaml:"storage"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Backend      string        `yaml:"backend"`       // v4l2 | gocv | x11 | mock
	Display      string        `yaml:"display"`       // x11 のディスプレイ（空なら DISPLAY）
	Width        int           `yaml:"width"`         // 画像幅
	Height       int           `yaml:"height"`        // 画像高さ
	JPEGQuality  int           `yaml:"jpeg_quality"`  // キャプチャのJPEG品質 (1-100)
	FrameTimeout time.Duration `yaml:"frame_timeout"` // 最初のフレームを待つ時間
}

// OCRConfig は文字認識エンジンの設定
type OCRConfig struct {
	Engine      string        `yaml:"engine"` // tesseract | rekognition | mock
	Language    string        `yaml:"language"`
	Whitelist   string        `yaml:"whitelist"`
	PageSegMode string        `yaml:"page_seg_mode"`
	AWSRegion   string        `yaml:"aws_region"`
	Timeout     time.Duration `yaml:"timeout"` // 1回の認識の上限時間
}

// DetectionConfig は検出の判定と表示の設定
type DetectionConfig struct {
	WordConfidence float64       `yaml:"word_confidence"` // 候補にする単語の信頼度（これを超えるもの）
	MinConfidence  float64       `yaml:"min_confidence"`  // 受理する信頼度の下限
	MinLength      int           `yaml:"min_length"`      // 受理する文字数の下限
	SuccessRevert  time.Duration `yaml:"success_revert"`  // 成功表示から idle に戻るまで
	ErrorRevert    time.Duration `yaml:"error_revert"`    // エラー表示から idle に戻るまで
	AutoSave       bool          `yaml:"auto_save"`       // 受理した結果を自動保存する
}

// StorageConfig は記録の保存先
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory | postgres
	DSN    string `yaml:"dsn"`
}

// NotifyConfig は通知の設定。トークンが空なら通知しない
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // 認識処理を待つため長めに取る
		},
		Camera: CameraConfig{
			Backend:      "v4l2",
			Width:        1280,
			Height:       720,
			JPEGQuality:  80,
			FrameTimeout: 10 * time.Second,
		},
		OCR: OCRConfig{
			Engine:      "tesseract",
			Language:    "eng",
			Whitelist:   "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789",
			PageSegMode: "single_block",
			Timeout:     30 * time.Second,
		},
		Detection: DetectionConfig{
			WordConfidence: 60,
			MinConfidence:  70,
			MinLength:      3,
			SuccessRevert:  2 * time.Second,
			ErrorRevert:    3 * time.Second,
			AutoSave:       true,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
	}
}

// Load は CONFIG_FILE（未指定なら config.yaml があればそれ）と環境変数から設定を読み込む
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom は指定されたYAMLファイルと環境変数から設定を読み込む
// 優先順位: 環境変数 > YAML > デフォルト値
func LoadFrom(path string) (*Config, error) {
	// .env はあれば読み込む（既存の環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルの値でデフォルトを上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

// applyEnv は環境変数による上書きを適用する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", getEnvAsIntOrDefault("SERVER_PORT", c.Server.Port))

	c.Camera.Backend = getEnvOrDefault("CAMERA_BACKEND", c.Camera.Backend)
	c.Camera.Display = getEnvOrDefault("CAMERA_DISPLAY", c.Camera.Display)
	c.Camera.Width = getEnvAsIntOrDefault("CAMERA_WIDTH", c.Camera.Width)
	c.Camera.Height = getEnvAsIntOrDefault("CAMERA_HEIGHT", c.Camera.Height)
	c.Camera.JPEGQuality = getEnvAsIntOrDefault("CAMERA_JPEG_QUALITY", c.Camera.JPEGQuality)

	c.OCR.Engine = getEnvOrDefault("OCR_ENGINE", c.OCR.Engine)
	c.OCR.Language = getEnvOrDefault("OCR_LANGUAGE", c.OCR.Language)
	c.OCR.AWSRegion = getEnvOrDefault("AWS_REGION", c.OCR.AWSRegion)
	c.OCR.Timeout = getEnvAsDurationOrDefault("OCR_TIMEOUT", c.OCR.Timeout)

	c.Detection.MinConfidence = getEnvAsFloatOrDefault("DETECTION_MIN_CONFIDENCE", c.Detection.MinConfidence)
	c.Detection.AutoSave = getEnvAsBoolOrDefault("DETECTION_AUTO_SAVE", c.Detection.AutoSave)

	c.Storage.Driver = getEnvOrDefault("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnvOrDefault("DATABASE_URL", c.Storage.DSN)

	c.Notify.TelegramToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", c.Notify.TelegramToken)
	c.Notify.TelegramChatID = getEnvAsInt64OrDefault("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	switch c.Camera.Backend {
	case "v4l2", "gocv", "x11", "mock":
	default:
		return fmt.Errorf("不明なカメラバックエンド: %q", c.Camera.Backend)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Camera.JPEGQuality)
	}

	// OCR設定の検証
	switch c.OCR.Engine {
	case "tesseract", "rekognition", "mock":
	default:
		return fmt.Errorf("不明なOCRエンジン: %q", c.OCR.Engine)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("無効なOCRタイムアウト: %s", c.OCR.Timeout)
	}

	// 検出設定の検証
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 100 {
		return fmt.Errorf("無効な信頼度の下限: %v", c.Detection.MinConfidence)
	}
	if c.Detection.WordConfidence < 0 || c.Detection.WordConfidence > 100 {
		return fmt.Errorf("無効な単語信頼度: %v", c.Detection.WordConfidence)
	}
	if c.Detection.MinLength < 1 {
		return fmt.Errorf("無効な最小文字数: %d", c.Detection.MinLength)
	}
	if c.Detection.SuccessRevert <= 0 || c.Detection.ErrorRevert <= 0 {
		return fmt.Errorf("表示の復帰時間は正の値が必要です")
	}

	// 保存先の検証
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("postgres を使う場合は DSN が必要です")
		}
	default:
		return fmt.Errorf("不明な保存先: %q", c.Storage.Driver)
	}

	// 通知設定の検証
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return fmt.Errorf("Telegram通知にはチャットIDが必要です")
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は "30s" のような値を time.Duration として取得する
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
