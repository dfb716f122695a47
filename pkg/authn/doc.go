// Package authn は外部IDプロバイダが発行したJWTの検証を提供する。
//
// プロバイダのJWKSエンドポイントから公開鍵セットを取得・キャッシュし、
// RS256署名・発行者・有効期限を検証する。検証失敗の理由は呼び出し側に
// 区別させず、単一の汎用エラーに集約する。
package authn
