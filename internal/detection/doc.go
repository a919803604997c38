// Package detection はキャプチャ・認識・検証を順に実行する検出オーケストレーターを提供する
//
// 状態遷移:
//
//	idle → detecting → success | error → idle
//
// success と error は一定時間後に idle に戻る。新しい遷移が起きた場合、
// 保留中の復帰は破棄される。
package detection
