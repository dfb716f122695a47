// Package datasvc はホスト型データベースのローカル開発用スタンドインを提供する。
//
// BFFが使用するREST APIのサブセット（テーブルの取得・挿入・更新・削除と
// おすすめメンターRPC）をSQLiteの上に実装し、外部サービス無しで
// エンドツーエンドの動作確認をできるようにする。本番ではBFFは
// ホスト型データベースに直接接続するため、このサービスは起動しない。
package datasvc
