// Package bff は学習プラットフォームのバックエンド・フォー・フロントエンドを提供する。
//
// 外部IDプロバイダ発行のJWTでリクエストを認証し、ホスト型データベースへの
// クエリ結果をフロントエンド向けのJSONに整形して返す。永続データは一切
// 保持せず、すべての耐久状態は外部サービス側にある。
package bff
