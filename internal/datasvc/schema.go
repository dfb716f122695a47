package datasvc

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// スキーマ定義。session_dateはISO形式の文字列で保存し、
// 文字列比較がそのまま時刻比較になるようにする。
const schema = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id TEXT PRIMARY KEY,
    learning_hours REAL NOT NULL DEFAULT 0,
    completed_sessions INTEGER NOT NULL DEFAULT 0,
    skills_in_progress INTEGER NOT NULL DEFAULT 0,
    network_growth INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS learning_paths (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    completed_modules INTEGER NOT NULL DEFAULT 0,
    total_modules INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_learning_paths_user
    ON learning_paths(user_id);

CREATE TABLE IF NOT EXISTS mentors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    rating REAL,
    reviews INTEGER,
    skills TEXT,
    hourly_rate REAL,
    avatar_url TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    mentee_id TEXT NOT NULL,
    mentor_id TEXT NOT NULL,
    title TEXT NOT NULL,
    session_date TEXT NOT NULL,
    duration INTEGER NOT NULL DEFAULT 60
);

CREATE INDEX IF NOT EXISTS idx_sessions_mentee
    ON sessions(mentee_id, session_date);

CREATE TABLE IF NOT EXISTS todos (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}

// demoUserID はシードデータが紐づく開発用ユーザーのID。
// 開発用IDプロバイダテナントのテストユーザーに合わせる。
const demoUserID = "auth0|demo-user"

// seedIfEmpty はmentorsテーブルが空の場合のみ開発用データを投入する。
func seedIfEmpty(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM mentors").Scan(&count); err != nil {
		return fmt.Errorf("シード状態の確認に失敗: %w", err)
	}
	if count > 0 {
		return nil
	}

	mentorChen := uuid.New().String()
	mentorRodriguez := uuid.New().String()

	statements := []struct {
		query string
		args  []any
	}{
		{
			`INSERT INTO user_stats (user_id, learning_hours, completed_sessions, skills_in_progress, network_growth)
			 VALUES (?, ?, ?, ?, ?)`,
			[]any{demoUserID, 24.5, 18, 5, 12},
		},
		{
			`INSERT INTO mentors (id, name, title, rating, reviews, skills, hourly_rate, avatar_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{mentorChen, "Dr. Emily Chen", "Data Science Expert | PhD Stanford",
				4.9, 124, `["Machine Learning","Python","Data Analysis","Statistics"]`, 75.0, nil},
		},
		{
			`INSERT INTO mentors (id, name, title, rating, reviews, skills, hourly_rate, avatar_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{mentorRodriguez, "Michael Rodriguez", "Senior Software Engineer | Google",
				4.8, 87, `["JavaScript","React","Node.js","System Design"]`, 65.0, nil},
		},
		{
			`INSERT INTO learning_paths (id, user_id, title, progress, completed_modules, total_modules)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.New().String(), demoUserID, "Full-Stack Web Development", 45, 9, 20},
		},
		{
			`INSERT INTO learning_paths (id, user_id, title, progress, completed_modules, total_modules)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.New().String(), demoUserID, "UX/UI Design Fundamentals", 30, 3, 10},
		},
		{
			`INSERT INTO sessions (id, mentee_id, mentor_id, title, session_date, duration)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.New().String(), demoUserID, mentorChen,
				"JavaScript Fundamentals", "2030-03-15T15:00:00", 45},
		},
		{
			`INSERT INTO sessions (id, mentee_id, mentor_id, title, session_date, duration)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{uuid.New().String(), demoUserID, mentorRodriguez,
				"React Advanced Concepts", "2030-03-16T10:00:00", 60},
		},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("シードデータの投入に失敗: %w", err)
		}
	}
	return nil
}
