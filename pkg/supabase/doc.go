// Package supabase はホスト型データベース（Supabase）のREST APIクライアントを提供する。
//
// PostgRESTのフィルタ・ソート・件数制限をメソッドチェーンで組み立てる
// テーブルクエリと、名前付きサーバーサイド関数の呼び出し（RPC）を含む。
// タイムアウトや再試行はHTTPクライアントの既定値に任せる。
package supabase
