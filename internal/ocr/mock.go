package ocr

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockWorker はテスト用のモックワーカー
type MockWorker struct {
	mu     sync.Mutex
	output *Output
	err    error
	delay  time.Duration

	calls            int
	inFlight         int
	maxInFlight      int
	closed           bool
	closedDuringCall bool
}

// NewMockWorker は固定の認識結果を返すモックワーカーを作成する
func NewMockWorker(output *Output) *MockWorker {
	return &MockWorker{output: output}
}

// Recognize は設定された結果を返す
// delay はキャンセルされても最後まで待つ（キャンセル非対応のエンジンを模す）
func (m *MockWorker) Recognize(_ context.Context, _ []byte) (*Output, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("モック: ワーカーは解放済みです")
	}
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	if m.err != nil {
		return nil, m.err
	}
	if m.output == nil {
		return &Output{}, nil
	}
	out := *m.output
	out.Words = append([]Word(nil), m.output.Words...)
	return &out, nil
}

// Close はワーカーを解放済みにする
func (m *MockWorker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight > 0 {
		m.closedDuringCall = true
	}
	m.closed = true
	return nil
}

// SetOutput は返す認識結果を設定する
func (m *MockWorker) SetOutput(output *Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = output
}

// SetError は返すエラーを設定する
func (m *MockWorker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay は認識にかかる時間を設定する
func (m *MockWorker) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// Calls はRecognizeの呼び出し回数を返す
func (m *MockWorker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight は同時実行数の最大値を返す
func (m *MockWorker) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Closed は解放済みかどうかを返す
func (m *MockWorker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ClosedDuringCall は認識中に解放されたかどうかを返す
func (m *MockWorker) ClosedDuringCall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closedDuringCall
}

// MockFactory はモックワーカーを返すファクトリ
type MockFactory struct {
	mu      sync.Mutex
	workers []*MockWorker
	output  *Output
	err     error
	params  []Params
}

// NewMockFactory は指定結果を返すワーカーを生成するファクトリを作成する
func NewMockFactory(output *Output) *MockFactory {
	return &MockFactory{output: output}
}

// New はWorkerFactoryとして使う
func (f *MockFactory) New(_ context.Context, params Params) (Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	worker := NewMockWorker(f.output)
	f.workers = append(f.workers, worker)
	return worker, nil
}

// SetError は生成失敗を設定する
func (f *MockFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Workers は生成したワーカー一覧を返す
func (f *MockFactory) Workers() []*MockWorker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockWorker(nil), f.workers...)
}

// Params は生成時に渡されたパラメータ履歴を返す
func (f *MockFactory) Params() []Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Params(nil), f.params...)
}
