package ocr

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultTimeout は1回の認識処理の上限時間
const DefaultTimeout = 30 * time.Second

// Adapter は1つの認識ワーカーを所有し、処理を直列化する
type Adapter struct {
	factory WorkerFactory
	params  Params
	timeout time.Duration

	mu     sync.Mutex
	state  State
	worker Worker

	// 実行中の Recognize は最大1つ
	inFlight chan struct{}
}

// NewAdapter は新しいAdapterを作成する
func NewAdapter(factory WorkerFactory, params Params, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		factory:  factory,
		params:   params,
		timeout:  timeout,
		state:    StateUninitialized,
		inFlight: make(chan struct{}, 1),
	}
}

// Initialize はワーカーを生成する。準備済みなら何もしない
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateReady {
		return nil
	}

	worker, err := a.factory(ctx, a.params)
	if err != nil {
		log.Printf("OCRエンジンの初期化に失敗しました: %v", err)
		return fmt.Errorf("%w: %v", ErrEngineInit, err)
	}

	a.worker = worker
	a.state = StateReady
	log.Printf("OCRエンジンを初期化しました (言語: %s)", a.params.Language)
	return nil
}

// Process は画像を認識する。呼び出しは直列化される
// 前の処理の終了待ちも含めて timeout で打ち切る
func (a *Adapter) Process(ctx context.Context, image []byte) (*Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case a.inFlight <- struct{}{}:
	case <-callCtx.Done():
		log.Printf("OCR処理の順番待ちが中断されました: %v", callCtx.Err())
		return nil, fmt.Errorf("%w: %w", ErrProcess, callCtx.Err())
	}

	a.mu.Lock()
	if a.state != StateReady {
		a.mu.Unlock()
		<-a.inFlight
		return nil, ErrNotReady
	}
	worker := a.worker
	a.mu.Unlock()

	type result struct {
		output *Output
		err    error
	}
	done := make(chan result, 1)

	// エンジンが実際に戻るまでスロットを保持する
	go func() {
		defer func() { <-a.inFlight }()
		output, err := worker.Recognize(callCtx, image)
		done <- result{output: output, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProcess, r.err)
		}
		if r.output == nil {
			return nil, fmt.Errorf("%w: 認識結果が空です", ErrProcess)
		}
		return r.output, nil
	case <-callCtx.Done():
		log.Printf("OCR処理が中断されました: %v", callCtx.Err())
		return nil, fmt.Errorf("%w: %w", ErrProcess, callCtx.Err())
	}
}

// Terminate は新しい処理の受付を止め、実行中の処理の完了を待ってからワーカーを解放する
// ctx が先に終わった場合、解放は実行中の処理が戻った時点で行われる
func (a *Adapter) Terminate(ctx context.Context) error {
	a.mu.Lock()
	worker := a.worker
	a.worker = nil
	a.state = StateTerminated
	a.mu.Unlock()

	if worker == nil {
		return nil
	}

	select {
	case a.inFlight <- struct{}{}:
	case <-ctx.Done():
		go func() {
			a.inFlight <- struct{}{}
			defer func() { <-a.inFlight }()
			if err := worker.Close(); err != nil {
				log.Printf("ワーカーの解放に失敗: %v", err)
				return
			}
			log.Println("OCRエンジンを終了しました")
		}()
		return fmt.Errorf("OCRエンジンの終了待ちが中断されました: %w", ctx.Err())
	}
	defer func() { <-a.inFlight }()

	if err := worker.Close(); err != nil {
		return fmt.Errorf("ワーカーの解放に失敗: %w", err)
	}
	log.Println("OCRエンジンを終了しました")
	return nil
}

// State は現在の状態を返す
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
