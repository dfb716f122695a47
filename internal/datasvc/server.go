package datasvc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/DLOADIN/Eduwealthier/pkg/middleware"
)

// tableColumns は公開するテーブルと、そのカラムのホワイトリスト。
// フィルタ・ソート・挿入・更新はこのリストに載っているカラムのみ受け付ける。
var tableColumns = map[string][]string{
	"user_stats":     {"user_id", "learning_hours", "completed_sessions", "skills_in_progress", "network_growth"},
	"learning_paths": {"id", "user_id", "title", "progress", "completed_modules", "total_modules"},
	"mentors":        {"id", "name", "title", "rating", "reviews", "skills", "hourly_rate", "avatar_url"},
	"sessions":       {"id", "mentee_id", "mentor_id", "title", "session_date", "duration"},
	"todos":          {"id", "name", "created_at"},
}

// Server はローカルデータサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しいデータサービスサーバーを生成する。
// スキーマ適用と開発用データの投入を行う。
func NewServer(port, dbPath string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBでは接続ごとに別のデータベースになるため、接続数を1に固定する。
	sqlDB.SetMaxOpenConns(1)

	if err := initSchema(sqlDB); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(sqlDB); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		port:   port,
		db:     sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// テーブルごとに静的なルートを張る（対象スキーマは固定のため）。
func (s *Server) setupRoutes() {
	rest := s.router.Group("/rest/v1")
	for table := range tableColumns {
		table := table
		rest.GET("/"+table, s.handleSelect(table))
		rest.POST("/"+table, s.handleInsert(table))
		rest.PATCH("/"+table, s.handleUpdate(table))
		rest.DELETE("/"+table, s.handleDelete(table))
	}
	rest.POST("/rpc/get_recommended_mentors", s.handleRecommendedMentors())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "datasvc"})
	})
}

// handleSelect はPostgREST形式のパラメータでSELECTを実行するハンドラを返す。
// 対応パラメータ: <col>=eq.<v>, <col>=gte.<v>, order=<col>.asc|desc, limit=<n>,
// select（sessionsのmentor埋め込みのみ解釈し、それ以外は全カラム取得）。
func (s *Server) handleSelect(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		where, args, err := buildFilters(table, c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		query := "SELECT * FROM " + table + where

		if order := c.Query("order"); order != "" {
			column, direction, ok := parseOrder(table, order)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order parameter"})
				return
			}
			query += " ORDER BY " + column + " " + direction
		}

		if limit := c.Query("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
				return
			}
			query += " LIMIT " + strconv.Itoa(n)
		}

		rows, err := s.queryRows(query, args...)
		if err != nil {
			logrus.WithField("table", table).WithError(err).Error("SELECTの実行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if table == "mentors" {
			decodeSkills(rows)
		}
		if table == "sessions" && strings.Contains(c.Query("select"), "mentor:mentors") {
			if err := s.embedMentors(rows); err != nil {
				logrus.WithError(err).Error("メンター情報の埋め込みに失敗")
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, rows)
	}
}

// handleInsert は1行を挿入するハンドラを返す。
// idカラムを持つテーブルでidが未指定の場合はUUIDを採番する。
func (s *Server) handleInsert(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var record map[string]any
		if err := c.ShouldBindJSON(&record); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if hasColumn(table, "id") {
			if _, ok := record["id"]; !ok {
				record["id"] = uuid.New().String()
			}
		}

		columns := make([]string, 0, len(record))
		placeholders := make([]string, 0, len(record))
		args := make([]any, 0, len(record))
		for _, column := range tableColumns[table] {
			value, ok := record[column]
			if !ok {
				continue
			}
			columns = append(columns, column)
			placeholders = append(placeholders, "?")
			args = append(args, toSQLValue(value))
		}
		if len(columns) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid columns in request body"})
			return
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
		if _, err := s.db.Exec(query, args...); err != nil {
			logrus.WithField("table", table).WithError(err).Error("INSERTの実行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		inserted, err := s.rowsByRecord(table, record)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, inserted)
	}
}

// handleUpdate はフィルタに一致する行を部分更新するハンドラを返す。
// 誤操作で全行を書き換えないよう、フィルタ無しの更新は拒否する。
func (s *Server) handleUpdate(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		where, whereArgs, err := buildFilters(table, c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if where == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "update requires a filter"})
			return
		}

		assignments := make([]string, 0, len(patch))
		args := make([]any, 0, len(patch)+len(whereArgs))
		for _, column := range tableColumns[table] {
			value, ok := patch[column]
			if !ok {
				continue
			}
			assignments = append(assignments, column+" = ?")
			args = append(args, toSQLValue(value))
		}
		if len(assignments) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid columns in request body"})
			return
		}
		args = append(args, whereArgs...)

		query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(assignments, ", "), where)
		if _, err := s.db.Exec(query, args...); err != nil {
			logrus.WithField("table", table).WithError(err).Error("UPDATEの実行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		updated, err := s.queryRows("SELECT * FROM "+table+where, whereArgs...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// handleDelete はフィルタに一致する行を削除するハンドラを返す。
// 削除した行をレスポンスで返す。フィルタ無しの削除は拒否する。
func (s *Server) handleDelete(table string) gin.HandlerFunc {
	return func(c *gin.Context) {
		where, args, err := buildFilters(table, c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if where == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delete requires a filter"})
			return
		}

		deleted, err := s.queryRows("SELECT * FROM "+table+where, args...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if _, err := s.db.Exec("DELETE FROM "+table+where, args...); err != nil {
			logrus.WithField("table", table).WithError(err).Error("DELETEの実行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, deleted)
	}
}

// recommendedMentorsParams はおすすめメンターRPCのリクエストボディ。
type recommendedMentorsParams struct {
	// UserID は対象ユーザーのID。
	UserID string `json:"user_id" binding:"required"`
}

// handleRecommendedMentors はおすすめメンターRPCのハンドラを返す。
// ユーザーが既にセッションを持つメンターを除き、評価の高い順に最大3名返す。
func (s *Server) handleRecommendedMentors() gin.HandlerFunc {
	return func(c *gin.Context) {
		var params recommendedMentorsParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		rows, err := s.queryRows(`
			SELECT * FROM mentors
			WHERE id NOT IN (SELECT mentor_id FROM sessions WHERE mentee_id = ?)
			ORDER BY rating DESC
			LIMIT 3`, params.UserID)
		if err != nil {
			logrus.WithField("user_id", params.UserID).WithError(err).
				Error("おすすめメンターの取得に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		decodeSkills(rows)
		c.JSON(http.StatusOK, rows)
	}
}

// buildFilters はクエリパラメータからWHERE句とバインド引数を組み立てる。
// 対応する演算子はeqとgte。未知のカラムはエラーにする。
func buildFilters(table string, c *gin.Context) (string, []any, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	for key, values := range c.Request.URL.Query() {
		if key == "select" || key == "order" || key == "limit" {
			continue
		}
		if !hasColumn(table, key) {
			return "", nil, fmt.Errorf("unknown column: %s", key)
		}
		for _, value := range values {
			op, operand, found := strings.Cut(value, ".")
			if !found {
				return "", nil, fmt.Errorf("invalid filter: %s=%s", key, value)
			}
			switch op {
			case "eq":
				conditions = append(conditions, key+" = ?")
			case "gte":
				conditions = append(conditions, key+" >= ?")
			default:
				return "", nil, fmt.Errorf("unsupported operator: %s", op)
			}
			args = append(args, operand)
		}
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// parseOrder はorderパラメータ（<col>.asc|desc）を検証して分解する。
func parseOrder(table, order string) (string, string, bool) {
	column, direction, found := strings.Cut(order, ".")
	if !found || !hasColumn(table, column) {
		return "", "", false
	}
	switch direction {
	case "asc":
		return column, "ASC", true
	case "desc":
		return column, "DESC", true
	}
	return "", "", false
}

// hasColumn はテーブルのホワイトリストにカラムが含まれるかを返す。
func hasColumn(table, column string) bool {
	for _, c := range tableColumns[table] {
		if c == column {
			return true
		}
	}
	return false
}

// queryRows はSELECTを実行し、行をマップのスライスとして返す。
func (s *Server) queryRows(query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("クエリの実行に失敗: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("カラム情報の取得に失敗: %w", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("行の読み取りに失敗: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// rowsByRecord は挿入した行を主キー（または全一致）で引き直す。
func (s *Server) rowsByRecord(table string, record map[string]any) ([]map[string]any, error) {
	if id, ok := record["id"]; ok {
		return s.queryRows("SELECT * FROM "+table+" WHERE id = ?", toSQLValue(id))
	}
	if table == "user_stats" {
		if userID, ok := record["user_id"]; ok {
			return s.queryRows("SELECT * FROM user_stats WHERE user_id = ?", toSQLValue(userID))
		}
	}
	return []map[string]any{record}, nil
}

// toSQLValue はJSON由来の値をSQLiteに保存できる形に変換する。
// 配列・オブジェクトはJSON文字列として保存する（mentorsのskills等）。
func toSQLValue(value any) any {
	switch value.(type) {
	case []any, map[string]any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return string(encoded)
	default:
		return value
	}
}

// decodeSkills はJSON文字列として保存されたskillsカラムを配列に復元する。
func decodeSkills(rows []map[string]any) {
	for _, row := range rows {
		text, ok := row["skills"].(string)
		if !ok || text == "" {
			continue
		}
		var skills []string
		if err := json.Unmarshal([]byte(text), &skills); err == nil {
			row["skills"] = skills
		}
	}
}

// embedMentors はセッション行にメンターの表示情報を埋め込む。
// BFFが使用する mentor:mentors(name,avatar_url) の埋め込みのみ対応する。
func (s *Server) embedMentors(rows []map[string]any) error {
	for _, row := range rows {
		mentorID, ok := row["mentor_id"].(string)
		if !ok || mentorID == "" {
			row["mentor"] = nil
			continue
		}

		var name string
		var avatarURL sql.NullString
		err := s.db.QueryRow("SELECT name, avatar_url FROM mentors WHERE id = ?", mentorID).
			Scan(&name, &avatarURL)
		if err == sql.ErrNoRows {
			row["mentor"] = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("メンター情報の取得に失敗: %w", err)
		}

		mentor := map[string]any{"name": name}
		if avatarURL.Valid {
			mentor["avatar_url"] = avatarURL.String
		} else {
			mentor["avatar_url"] = nil
		}
		row["mentor"] = mentor
	}
	return nil
}
