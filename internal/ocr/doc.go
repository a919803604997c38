// Package ocr は文字認識エンジンのアダプターを提供する
//
// 主な機能:
//   - 長寿命の認識ワーカーを1つだけ保持し、初期化・処理・終了を管理
//   - 同一アダプターに対する認識処理の直列化
//   - Tesseract（gosseract）、AWS Rekognition、モックのエンジン実装
package ocr
