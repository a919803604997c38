// Package app は設定から各コンポーネントを組み立てる
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"platescan/internal/camera"
	"platescan/internal/config"
	"platescan/internal/detection"
	"platescan/internal/notify"
	"platescan/internal/ocr"
	"platescan/internal/plate"
	"platescan/internal/record"
	"platescan/internal/server"
)

// closeTimeout は終了時に実行中の認識処理を待つ上限
const closeTimeout = 10 * time.Second

// App は起動に必要なコンポーネント一式
type App struct {
	Camera   *camera.Manager
	OCR      *ocr.Adapter
	Store    record.Store
	Detector *detection.Orchestrator
	Server   *server.Server
}

// New は設定に従ってコンポーネントを組み立てる
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	platform, err := newPlatform(cfg.Camera)
	if err != nil {
		return nil, err
	}
	manager := camera.NewManager(platform, camera.Settings{
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		JPEGQuality: cfg.Camera.JPEGQuality,
	})

	factory, err := newWorkerFactory(cfg.OCR)
	if err != nil {
		return nil, err
	}
	adapter := ocr.NewAdapter(factory, ocr.Params{
		Language:    cfg.OCR.Language,
		Whitelist:   cfg.OCR.Whitelist,
		PageSegMode: cfg.OCR.PageSegMode,
	}, cfg.OCR.Timeout)

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var listeners []detection.Listener
	if cfg.Detection.AutoSave {
		listeners = append(listeners, record.NewAutoSaver(store))
	}
	if cfg.Notify.TelegramToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			// 通知なしで起動を続ける
			log.Printf("Telegram通知を無効にします: %v", err)
		} else {
			listeners = append(listeners, notifier)
		}
	}

	detector := detection.NewOrchestrator(manager, adapter, detection.Options{
		SuccessRevert: cfg.Detection.SuccessRevert,
		ErrorRevert:   cfg.Detection.ErrorRevert,
		Validator: plate.Validator{
			WordConfidence: cfg.Detection.WordConfidence,
			MinLength:      cfg.Detection.MinLength,
			MinConfidence:  cfg.Detection.MinConfidence,
		},
	}, listeners...)

	handler, err := server.NewHandler(ctx, manager, detector, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ハンドラーの作成に失敗: %w", err)
	}

	return &App{
		Camera:   manager,
		OCR:      adapter,
		Store:    store,
		Detector: detector,
		Server:   server.New(cfg, handler),
	}, nil
}

// Run はサーバーを起動し、終了後に後始末をする
func (a *App) Run(ctx context.Context) error {
	serveErr := a.Server.Start(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return errors.Join(serveErr, a.Close(closeCtx))
}

// Close は検出、認識エンジン、カメラ、保存先の順に解放する
func (a *App) Close(ctx context.Context) error {
	a.Detector.Close()

	var errs []error
	if err := a.OCR.Terminate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("OCRエンジンの終了に失敗: %w", err))
	}
	if err := a.Camera.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("カメラの停止に失敗: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("保存先のクローズに失敗: %w", err))
	}
	return errors.Join(errs...)
}

// newPlatform はバックエンド名からカメラ基盤を選ぶ
func newPlatform(cfg config.CameraConfig) (camera.Platform, error) {
	switch cfg.Backend {
	case "v4l2":
		return camera.NewLinuxPlatform(cfg.FrameTimeout), nil
	case "gocv":
		return camera.NewGoCVPlatform(), nil
	case "x11":
		return camera.NewX11Platform(cfg.Display, cfg.FrameTimeout), nil
	case "mock":
		return camera.NewMockPlatform(
			camera.DeviceDescriptor{ID: "mock-rear", Label: "Mock Rear Camera"},
			camera.DeviceDescriptor{ID: "mock-front", Label: "Mock Front Camera"},
		), nil
	default:
		return nil, fmt.Errorf("不明なカメラバックエンド: %q", cfg.Backend)
	}
}

// newWorkerFactory はエンジン名から認識ワーカーの生成関数を選ぶ
func newWorkerFactory(cfg config.OCRConfig) (ocr.WorkerFactory, error) {
	switch cfg.Engine {
	case "tesseract":
		if !ocr.TesseractAvailable {
			log.Println("tesseractタグなしでビルドされています。初期化時に失敗します")
		}
		return ocr.NewTesseractWorker, nil
	case "rekognition":
		return ocr.NewRekognitionFactory(cfg.AWSRegion), nil
	case "mock":
		return ocr.NewMockFactory(&ocr.Output{
			Text:       "MOCK123",
			Confidence: 90,
			Words:      []ocr.Word{{Text: "MOCK123", Confidence: 90}},
		}).New, nil
	default:
		return nil, fmt.Errorf("不明なOCRエンジン: %q", cfg.Engine)
	}
}

// newStore はドライバ名から記録の保存先を開く
func newStore(ctx context.Context, cfg config.StorageConfig) (record.Store, error) {
	switch cfg.Driver {
	case "memory":
		return record.NewMemoryStore(), nil
	case "postgres":
		store, err := record.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("不明なストレージドライバ: %q", cfg.Driver)
	}
}
