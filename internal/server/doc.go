// Package server は、HTTPサーバーとREST APIを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// カメラ操作・検出・記録管理のリクエスト処理を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - カメラの開始・停止・切り替え
//   - 1フレームの検出要求と結果の返却
//   - 検出記録の一覧・作成・削除・CSVエクスポート
//
// 仕様:
//   - ルーティングはgin、リクエスト検証は埋め込みOpenAPIドキュメント（kin-openapi）を使用
//   - グレースフルシャットダウンに対応
package server
