package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client はSupabaseプロジェクトのREST APIへアクセスするHTTPクライアント。
// プロセス起動時に1つだけ生成し、ハンドラへ明示的に渡して使い回す。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL はSupabaseプロジェクトのベースURL（例: "https://xyz.supabase.co"）。
	baseURL string
	// apiKey はプロジェクトのAPIキー。apikeyヘッダーとBearerトークンの両方に使う。
	apiKey string
}

// New は新しいSupabase APIクライアントを生成する。
func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// From は指定テーブルへのクエリビルダーを返す。
func (c *Client) From(table string) *Query {
	return &Query{
		client:  c,
		table:   table,
		filters: url.Values{},
		limit:   -1,
	}
}

// RPC は名前付きサーバーサイド関数を呼び出し、レスポンスをresultにデシリアライズする。
func (c *Client) RPC(ctx context.Context, fn string, params any, result any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+fn, nil, params, result)
}

// Query はテーブルに対するクエリをメソッドチェーンで組み立てる。
// フィルタ・ソート・件数制限を設定した後、Execute/Insert/Update/Deleteの
// いずれかで実行する。
type Query struct {
	// client は実行に使用するクライアント。
	client *Client
	// table は対象テーブル名。
	table string
	// selects はselectパラメータ（取得カラムと埋め込み）。
	selects string
	// filters はPostgREST形式のフィルタパラメータ。
	filters url.Values
	// order はソート指定（例: "session_date.asc"）。
	order string
	// limit は最大取得件数。負数は未指定を表す。
	limit int
}

// Select は取得するカラムを指定する。"*" やPostgRESTの埋め込み構文
// （例: "*,mentor:mentors(name,avatar_url)"）をそのまま渡せる。
func (q *Query) Select(columns string) *Query {
	q.selects = columns
	return q
}

// Eq は「カラム = 値」のフィルタを追加する。
func (q *Query) Eq(column, value string) *Query {
	q.filters.Set(column, "eq."+value)
	return q
}

// Gte は「カラム >= 値」のフィルタを追加する。
func (q *Query) Gte(column, value string) *Query {
	q.filters.Set(column, "gte."+value)
	return q
}

// Order は指定カラムでのソートを設定する。
func (q *Query) Order(column string, ascending bool) *Query {
	direction := "desc"
	if ascending {
		direction = "asc"
	}
	q.order = column + "." + direction
	return q
}

// Limit は最大取得件数を設定する。
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Execute はSELECTクエリを実行し、結果の行配列をresultにデシリアライズする。
func (q *Query) Execute(ctx context.Context, result any) error {
	return q.client.do(ctx, http.MethodGet, q.path(), q.params(), nil, result)
}

// Insert は行を挿入する。挿入された行はresultにデシリアライズされる
// （resultがnilの場合は破棄）。
func (q *Query) Insert(ctx context.Context, record any, result any) error {
	return q.client.do(ctx, http.MethodPost, q.path(), q.params(), record, result)
}

// Update はフィルタに一致する行を部分更新する。
// 事前にEq等でフィルタを設定しておくこと。
func (q *Query) Update(ctx context.Context, patch any, result any) error {
	return q.client.do(ctx, http.MethodPatch, q.path(), q.params(), patch, result)
}

// Delete はフィルタに一致する行を削除する。
// 事前にEq等でフィルタを設定しておくこと。
func (q *Query) Delete(ctx context.Context, result any) error {
	return q.client.do(ctx, http.MethodDelete, q.path(), q.params(), nil, result)
}

// path はクエリ対象のリクエストパスを返す。
func (q *Query) path() string {
	return "/rest/v1/" + q.table
}

// params はPostgREST形式のクエリパラメータを組み立てる。
func (q *Query) params() url.Values {
	params := url.Values{}
	for key, values := range q.filters {
		for _, v := range values {
			params.Add(key, v)
		}
	}
	if q.selects != "" {
		params.Set("select", q.selects)
	}
	if q.order != "" {
		params.Set("order", q.order)
	}
	if q.limit >= 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	return params
}

// do はSupabase REST APIへのHTTPリクエストを実行する共通処理。
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch || method == http.MethodDelete {
		// 変更した行をレスポンスで受け取る
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Supabase APIエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}
