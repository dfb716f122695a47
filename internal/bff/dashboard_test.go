package bff

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// dataBackend は各テーブル・RPCへのレスポンスをパス単位で差し替えられる
// モックデータバックエンドを返す。未指定のパスには空配列を返す。
func dataBackend(responses map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if body, ok := responses[r.URL.Path]; ok {
			if body == "FAIL" {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"message":"database exploded"}`))
				return
			}
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}
}

// getDashboard は認証付きでダッシュボードを取得しレスポンスを返す。
func getDashboard(t *testing.T, s *Server, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return w, body
}

// TestHandleDashboard はダッシュボード集計ハンドラを検証する。
func TestHandleDashboard(t *testing.T) {
	t.Parallel()

	t.Run("統計行が無いユーザーには全フィールド0のstatsが返ること", func(t *testing.T) {
		t.Parallel()

		s, token := newTestServer(t, dataBackend(map[string]string{
			"/rest/v1/user_stats": `[]`,
		}))

		w, body := getDashboard(t, s, token)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		stats, ok := body["stats"].(map[string]any)
		if !ok {
			t.Fatalf("statsがオブジェクトでない: %v", body["stats"])
		}
		for _, field := range []string{"learning_hours", "completed_sessions", "skills_in_progress", "network_growth"} {
			if got, ok := stats[field].(float64); !ok || got != 0 {
				t.Errorf("stats.%s = %v, want 0", field, stats[field])
			}
		}
		if body["success"] != true {
			t.Errorf("success = %v, want true", body["success"])
		}
	})

	t.Run("各クエリの結果が1つのペイロードにまとめられること", func(t *testing.T) {
		t.Parallel()

		s, token := newTestServer(t, dataBackend(map[string]string{
			"/rest/v1/user_stats": `[{
				"user_id": "auth0|student-1",
				"learning_hours": 24.5,
				"completed_sessions": 18,
				"skills_in_progress": 5,
				"network_growth": 12
			}]`,
			"/rest/v1/learning_paths": `[{
				"id": "path-1",
				"title": "Full-Stack Web Development",
				"progress": 45,
				"completed_modules": 9,
				"total_modules": 20
			}]`,
			"/rest/v1/sessions": `[{
				"id": "session-1",
				"title": "JavaScript Fundamentals",
				"session_date": "2030-03-15T14:30:00",
				"duration": 45,
				"mentor": {"name": "Jane Doe", "avatar_url": "https://cdn.example.com/jane.png"}
			}]`,
			"/rest/v1/rpc/get_recommended_mentors": `[{
				"id": "mentor-1",
				"name": "Dr. Emily Chen",
				"title": "Data Science Expert",
				"rating": 4.9,
				"reviews": 124,
				"skills": ["Machine Learning", "Python"],
				"hourly_rate": 75
			}]`,
		}))

		w, body := getDashboard(t, s, token)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}

		stats := body["stats"].(map[string]any)
		if stats["learning_hours"] != 24.5 {
			t.Errorf("learning_hours = %v, want 24.5", stats["learning_hours"])
		}
		if stats["completed_sessions"] != float64(18) {
			t.Errorf("completed_sessions = %v, want 18", stats["completed_sessions"])
		}

		paths := body["learning_paths"].([]any)
		if len(paths) != 1 {
			t.Fatalf("learning_paths件数 = %d, want 1", len(paths))
		}
		path := paths[0].(map[string]any)
		if path["title"] != "Full-Stack Web Development" {
			t.Errorf("title = %v, want %q", path["title"], "Full-Stack Web Development")
		}

		sessions := body["upcoming_sessions"].([]any)
		if len(sessions) != 1 {
			t.Fatalf("upcoming_sessions件数 = %d, want 1", len(sessions))
		}
		session := sessions[0].(map[string]any)
		if session["mentorName"] != "Jane Doe" {
			t.Errorf("mentorName = %v, want %q", session["mentorName"], "Jane Doe")
		}
		if session["date"] != "2030-03-15" {
			t.Errorf("date = %v, want %q", session["date"], "2030-03-15")
		}
		if session["time"] != "02:30 PM" {
			t.Errorf("time = %v, want %q", session["time"], "02:30 PM")
		}
		if session["duration"] != "45 min" {
			t.Errorf("duration = %v, want %q", session["duration"], "45 min")
		}
		if session["avatar"] != "https://cdn.example.com/jane.png" {
			t.Errorf("avatar = %v, want %q", session["avatar"], "https://cdn.example.com/jane.png")
		}

		mentors := body["recommended_mentors"].([]any)
		if len(mentors) != 1 {
			t.Fatalf("recommended_mentors件数 = %d, want 1", len(mentors))
		}
		mentor := mentors[0].(map[string]any)
		if mentor["rating"] != 4.9 {
			t.Errorf("rating = %v, want 4.9", mentor["rating"])
		}
		if mentor["hourlyRate"] != float64(75) {
			t.Errorf("hourlyRate = %v, want 75", mentor["hourlyRate"])
		}

		if body["success"] != true {
			t.Errorf("success = %v, want true", body["success"])
		}
	})

	t.Run("下流クエリが失敗した場合500と失敗エンベロープが返ること", func(t *testing.T) {
		t.Parallel()

		s, token := newTestServer(t, dataBackend(map[string]string{
			"/rest/v1/user_stats": "FAIL",
		}))

		w, body := getDashboard(t, s, token)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if body["success"] != false {
			t.Errorf("success = %v, want false", body["success"])
		}
		errMsg, ok := body["error"].(string)
		if !ok || errMsg == "" {
			t.Errorf("errorメッセージが空: %v", body["error"])
		}
		// 部分的なペイロードは返さない
		if _, exists := body["stats"]; exists {
			t.Error("失敗レスポンスにstatsが含まれるべきではない")
		}
	})

	t.Run("下流失敗時にエラーメッセージへ下流の内容が含まれること", func(t *testing.T) {
		t.Parallel()

		s, token := newTestServer(t, dataBackend(map[string]string{
			"/rest/v1/rpc/get_recommended_mentors": "FAIL",
		}))

		w, body := getDashboard(t, s, token)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		errMsg, _ := body["error"].(string)
		if !strings.Contains(errMsg, "status=500") {
			t.Errorf("エラーメッセージに下流のステータスが含まれない: %q", errMsg)
		}
	})
}

// TestFormatSession はセッション整形ルールを検証する。
func TestFormatSession(t *testing.T) {
	t.Parallel()

	t.Run("タイムスタンプから日付と12時間制の時刻が導出されること", func(t *testing.T) {
		t.Parallel()

		avatar := "https://cdn.example.com/jane.png"
		entry := formatSession(sessionRow{
			ID:          "session-1",
			Title:       "JavaScript Fundamentals",
			SessionDate: "2024-03-15T14:30:00",
			Duration:    45,
			Mentor:      &mentorRef{Name: "Jane Doe", AvatarURL: &avatar},
		})

		if entry.Date != "2024-03-15" {
			t.Errorf("Date = %q, want %q", entry.Date, "2024-03-15")
		}
		if entry.Time != "02:30 PM" {
			t.Errorf("Time = %q, want %q", entry.Time, "02:30 PM")
		}
		if entry.Duration != "45 min" {
			t.Errorf("Duration = %q, want %q", entry.Duration, "45 min")
		}
		if entry.MentorName != "Jane Doe" {
			t.Errorf("MentorName = %q, want %q", entry.MentorName, "Jane Doe")
		}
		if entry.Avatar != avatar {
			t.Errorf("Avatar = %q, want %q", entry.Avatar, avatar)
		}
	})

	t.Run("午前の時刻はAMサフィックスで整形されること", func(t *testing.T) {
		t.Parallel()

		entry := formatSession(sessionRow{
			SessionDate: "2024-03-15T09:05:00",
			Duration:    60,
		})

		if entry.Time != "09:05 AM" {
			t.Errorf("Time = %q, want %q", entry.Time, "09:05 AM")
		}
		if entry.Duration != "60 min" {
			t.Errorf("Duration = %q, want %q", entry.Duration, "60 min")
		}
	})

	t.Run("オフセット付きRFC3339のタイムスタンプも受け入れること", func(t *testing.T) {
		t.Parallel()

		entry := formatSession(sessionRow{
			SessionDate: "2024-03-15T14:30:00+00:00",
			Duration:    30,
		})

		if entry.Date != "2024-03-15" {
			t.Errorf("Date = %q, want %q", entry.Date, "2024-03-15")
		}
		if entry.Time != "02:30 PM" {
			t.Errorf("Time = %q, want %q", entry.Time, "02:30 PM")
		}
	})

	t.Run("メンター情報が無い場合は名前とアバターが空になること", func(t *testing.T) {
		t.Parallel()

		entry := formatSession(sessionRow{
			SessionDate: "2024-03-15T14:30:00",
			Duration:    45,
		})

		if entry.MentorName != "" {
			t.Errorf("MentorName = %q, want empty string", entry.MentorName)
		}
		if entry.Avatar != "" {
			t.Errorf("Avatar = %q, want empty string", entry.Avatar)
		}
	})
}

// TestFormatMentor はメンター整形ルールを検証する。
func TestFormatMentor(t *testing.T) {
	t.Parallel()

	t.Run("評価と時間単価が無い場合デフォルト値が使われること", func(t *testing.T) {
		t.Parallel()

		entry := formatMentor(mentorRow{
			ID:   "mentor-1",
			Name: "Michael Rodriguez",
		})

		if entry.Rating != 4.5 {
			t.Errorf("Rating = %v, want 4.5", entry.Rating)
		}
		if entry.HourlyRate != 50.0 {
			t.Errorf("HourlyRate = %v, want 50.0", entry.HourlyRate)
		}
		if entry.Reviews != 0 {
			t.Errorf("Reviews = %v, want 0", entry.Reviews)
		}
		if entry.Skills == nil || len(entry.Skills) != 0 {
			t.Errorf("Skills = %v, want 空スライス", entry.Skills)
		}
	})

	t.Run("値がある場合はそのまま通すこと", func(t *testing.T) {
		t.Parallel()

		rating := 4.9
		reviews := 124
		rate := 75.0
		entry := formatMentor(mentorRow{
			ID:         "mentor-1",
			Name:       "Dr. Emily Chen",
			Title:      "Data Science Expert",
			Rating:     &rating,
			Reviews:    &reviews,
			Skills:     []string{"Machine Learning", "Python"},
			HourlyRate: &rate,
		})

		if entry.Rating != 4.9 {
			t.Errorf("Rating = %v, want 4.9", entry.Rating)
		}
		if entry.Reviews != 124 {
			t.Errorf("Reviews = %v, want 124", entry.Reviews)
		}
		if len(entry.Skills) != 2 {
			t.Errorf("Skills件数 = %d, want 2", len(entry.Skills))
		}
		if entry.HourlyRate != 75.0 {
			t.Errorf("HourlyRate = %v, want 75.0", entry.HourlyRate)
		}
	})
}
