// Package camera ナンバープレート撮影用カメラのライフサイクルを担う
//
// # 責務
// - キャプチャデバイスの列挙と背面カメラの自動選択
// - ストリームの取得・解放・デバイス切り替え
// - 動作中ストリームからの静止画キャプチャ（JPEG）
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 1台のカメラで静止画を撮影したい
// - カメラを実行時に切り替えたい
//
// # 仕様
// - Manager: 状態 inactive / active / error を持つライフサイクル管理
// - LinuxPlatform: V4L2デバイスの検出とffmpeg経由のストリーミング
// - GoCVPlatform: OpenCVによるキャプチャ（gocvビルドタグが必要）
// - X11Platform: 画面をffmpegのx11grabで1台のデバイスとして扱う
// - 切り替えは必ず停止してから開始する（同時に2本のストリームを持たない）
// - 所有者は破棄時に必ず Close を呼ぶこと
//
// # 前提要件
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: ストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
