// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 外部IDプロバイダ発行のJWT検証ガード、パニックリカバリ、CORS設定など、
// ハンドラ本体より前に合成する処理を含む。
package middleware
