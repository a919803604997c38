package detection

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"platescan/internal/plate"
)

// Orchestrator はキャプチャ → 認識 → 検証 → 通知を1回ずつ実行する
type Orchestrator struct {
	source    FrameSource
	engine    Recognizer
	options   Options
	listeners []Listener

	mu         sync.Mutex
	status     Status
	message    string
	updatedAt  time.Time
	generation uint64
	revert     *time.Timer
}

// NewOrchestrator は新しいOrchestratorを作成する
func NewOrchestrator(source FrameSource, engine Recognizer, options Options, listeners ...Listener) *Orchestrator {
	defaults := DefaultOptions()
	if options.SuccessRevert <= 0 {
		options.SuccessRevert = defaults.SuccessRevert
	}
	if options.ErrorRevert <= 0 {
		options.ErrorRevert = defaults.ErrorRevert
	}
	if options.Validator == (plate.Validator{}) {
		options.Validator = defaults.Validator
	}

	return &Orchestrator{
		source:    source,
		engine:    engine,
		options:   options,
		listeners: listeners,
		status:    StatusIdle,
		message:   MessageReady,
		updatedAt: time.Now(),
	}
}

// DetectOnce は1フレームを検出する
// 検出中の呼び出しは状態を変えずに ErrBusy を返す
func (o *Orchestrator) DetectOnce(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.status == StatusDetecting {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	o.transitionLocked(StatusDetecting, MessageDetecting)
	o.mu.Unlock()

	frame, err := o.source.CaptureFrame(ctx)
	if err != nil || frame == nil {
		return nil, o.reject(&Rejection{Reason: ReasonNoFrame, Message: MessageNoFrame, Err: err})
	}

	if err := o.engine.Initialize(ctx); err != nil {
		return nil, o.reject(&Rejection{Reason: ReasonEngineUnavailable, Message: MessageEngineFailed, Err: err})
	}

	output, err := o.engine.Process(ctx, frame.Data)
	if err != nil {
		return nil, o.reject(&Rejection{Reason: ReasonProcessError, Message: MessageProcessFailed, Err: err})
	}

	candidate := o.options.Validator.Select(output)
	if err := o.options.Validator.Check(candidate); err != nil {
		rejection := &Rejection{Reason: ReasonLowConfidence, Message: MessageLowConfidence, Candidate: candidate, Err: err}
		if errors.Is(err, plate.ErrNoPlateDetected) {
			rejection.Reason = ReasonNoPlateDetected
			rejection.Message = MessageNoPlateDetected
		}
		return nil, o.reject(rejection)
	}

	result := &Result{
		PlateNumber: candidate.Text,
		Confidence:  candidate.Confidence,
		Timestamp:   time.Now(),
		Image:       frame,
	}

	o.mu.Lock()
	o.transitionLocked(StatusSuccess, MessageSuccess)
	o.scheduleRevertLocked(o.options.SuccessRevert)
	o.mu.Unlock()

	log.Printf("ナンバープレートを検出しました: %s (信頼度 %.1f)", result.PlateNumber, result.Confidence)

	for _, l := range o.listeners {
		if err := l.OnDetection(ctx, result); err != nil {
			log.Printf("検出結果の通知に失敗: %v", err)
		}
	}

	return result, nil
}

// Snapshot は現在の状態を返す
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Status:    o.status,
		Message:   o.message,
		UpdatedAt: o.updatedAt,
	}
}

// Status は現在の状態を返す
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Close は保留中の自動復帰を取り消す
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.generation++
	if o.revert != nil {
		o.revert.Stop()
		o.revert = nil
	}
}

func (o *Orchestrator) reject(rejection *Rejection) error {
	o.mu.Lock()
	o.transitionLocked(StatusError, rejection.Message)
	o.scheduleRevertLocked(o.options.ErrorRevert)
	o.mu.Unlock()

	log.Printf("検出に失敗しました (%s): %v", rejection.Reason, rejection.Err)
	return rejection
}

// transitionLocked は状態を変更し、保留中の復帰を無効にする（ロック済み前提）
func (o *Orchestrator) transitionLocked(status Status, message string) {
	o.generation++
	if o.revert != nil {
		o.revert.Stop()
		o.revert = nil
	}
	o.status = status
	o.message = message
	o.updatedAt = time.Now()
}

// scheduleRevertLocked は一定時間後に idle へ戻す（ロック済み前提）
func (o *Orchestrator) scheduleRevertLocked(after time.Duration) {
	generation := o.generation
	o.revert = time.AfterFunc(after, func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		// より新しい遷移があれば何もしない
		if o.generation != generation {
			return
		}
		o.status = StatusIdle
		o.message = MessageReady
		o.updatedAt = time.Now()
		o.revert = nil
	})
}
