package bff

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DLOADIN/Eduwealthier/pkg/middleware"
)

// statsRow は user_stats テーブルの1行。統計値は行ごと欠けている場合が
// あるためポインタで受け、デフォルト値への置き換えは整形時に行う。
type statsRow struct {
	LearningHours     *float64 `json:"learning_hours"`
	CompletedSessions *int     `json:"completed_sessions"`
	SkillsInProgress  *int     `json:"skills_in_progress"`
	NetworkGrowth     *int     `json:"network_growth"`
}

// statsPayload はダッシュボードのstatsフィールド。統計行が無いユーザーには
// 全フィールド0を返す（エラーにはしない）。
type statsPayload struct {
	LearningHours     float64 `json:"learning_hours"`
	CompletedSessions int     `json:"completed_sessions"`
	SkillsInProgress  int     `json:"skills_in_progress"`
	NetworkGrowth     int     `json:"network_growth"`
}

// learningPathRow は learning_paths テーブルの1行。そのままレスポンスに
// 通す（整形は不要）。
type learningPathRow struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Progress         int    `json:"progress"`
	CompletedModules int    `json:"completed_modules"`
	TotalModules     int    `json:"total_modules"`
}

// sessionRow は sessions テーブルの1行に、埋め込みで取得した
// メンター情報を加えたもの。
type sessionRow struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	SessionDate string     `json:"session_date"`
	Duration    int        `json:"duration"`
	Mentor      *mentorRef `json:"mentor"`
}

// mentorRef はセッションに埋め込まれたメンターの表示情報。
type mentorRef struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// sessionEntry はフロントエンドに返す直近セッションの整形済みエントリ。
type sessionEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MentorName string `json:"mentorName"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Duration   string `json:"duration"`
	Avatar     string `json:"avatar,omitempty"`
}

// mentorRow は get_recommended_mentors RPCが返す1行。
// rating等は欠けている場合があるためポインタで受ける。
type mentorRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Rating     *float64 `json:"rating"`
	Reviews    *int     `json:"reviews"`
	Skills     []string `json:"skills"`
	HourlyRate *float64 `json:"hourly_rate"`
}

// mentorEntry はフロントエンドに返すおすすめメンターの整形済みエントリ。
type mentorEntry struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Rating     float64  `json:"rating"`
	Reviews    int      `json:"reviews"`
	Skills     []string `json:"skills"`
	HourlyRate float64  `json:"hourlyRate"`
}

// おすすめメンターのデフォルト値。DB側に値が無い場合に使用する。
const (
	defaultMentorRating     = 4.5
	defaultMentorHourlyRate = 50.0
)

// sessionDateLayouts はsession_dateカラムとして受け入れるタイムスタンプ形式。
// Supabaseのtimestamptzはオフセット付きを返すが、シードデータ等は
// オフセット無しのISO形式のこともある。
var sessionDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// handleDashboard はダッシュボード集計ハンドラを返す。
// 4つの独立した下流クエリを順に実行して1つのペイロードにまとめる。
// いずれかが失敗した場合は部分的な結果を返さず、一律に500で打ち切る。
func (s *Server) handleDashboard() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		payload, err := s.buildDashboard(c.Request.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"operation": "dashboard",
				"user_id":   userID,
			}).WithError(err).Error("ダッシュボードの集計に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   err.Error(),
				"success": false,
			})
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

// buildDashboard はダッシュボードのペイロードを組み立てる。
// 各クエリは互いに独立しており、トランザクションは共有しない。
func (s *Server) buildDashboard(ctx context.Context, userID string) (gin.H, error) {
	stats, err := s.fetchStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("学習統計の取得に失敗: %w", err)
	}

	paths, err := s.fetchLearningPaths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("学習パスの取得に失敗: %w", err)
	}

	sessions, err := s.fetchUpcomingSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("直近セッションの取得に失敗: %w", err)
	}

	mentors, err := s.fetchRecommendedMentors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("おすすめメンターの取得に失敗: %w", err)
	}

	return gin.H{
		"stats":               stats,
		"learning_paths":      paths,
		"upcoming_sessions":   sessions,
		"recommended_mentors": mentors,
		"success":             true,
	}, nil
}

// fetchStats はユーザーの学習統計を取得する。
// 統計行が存在しない場合は全フィールド0のペイロードを返す。
func (s *Server) fetchStats(ctx context.Context, userID string) (statsPayload, error) {
	var rows []statsRow
	err := s.data.From("user_stats").
		Select("*").
		Eq("user_id", userID).
		Execute(ctx, &rows)
	if err != nil {
		return statsPayload{}, err
	}
	if len(rows) == 0 {
		return statsPayload{}, nil
	}
	return formatStats(rows[0]), nil
}

// fetchLearningPaths はユーザーの学習パス一覧を取得する。
func (s *Server) fetchLearningPaths(ctx context.Context, userID string) ([]learningPathRow, error) {
	rows := make([]learningPathRow, 0)
	err := s.data.From("learning_paths").
		Select("*").
		Eq("user_id", userID).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// fetchUpcomingSessions は現在時刻以降のセッションを開始時刻の昇順で
// 最大2件取得し、フロントエンド向けに整形する。
func (s *Server) fetchUpcomingSessions(ctx context.Context, userID string) ([]sessionEntry, error) {
	var rows []sessionRow
	err := s.data.From("sessions").
		Select("*,mentor:mentors(name,avatar_url)").
		Eq("mentee_id", userID).
		Gte("session_date", time.Now().UTC().Format(time.RFC3339)).
		Order("session_date", true).
		Limit(2).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}

	entries := make([]sessionEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, formatSession(row))
	}
	return entries, nil
}

// fetchRecommendedMentors はおすすめメンターをRPCで取得し、
// フロントエンド向けに整形する。
func (s *Server) fetchRecommendedMentors(ctx context.Context, userID string) ([]mentorEntry, error) {
	var rows []mentorRow
	err := s.data.RPC(ctx, "get_recommended_mentors",
		map[string]any{"user_id": userID}, &rows)
	if err != nil {
		return nil, err
	}

	entries := make([]mentorEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, formatMentor(row))
	}
	return entries, nil
}

// formatStats は統計行をペイロードに変換する。欠けているフィールドは0。
func formatStats(row statsRow) statsPayload {
	payload := statsPayload{}
	if row.LearningHours != nil {
		payload.LearningHours = *row.LearningHours
	}
	if row.CompletedSessions != nil {
		payload.CompletedSessions = *row.CompletedSessions
	}
	if row.SkillsInProgress != nil {
		payload.SkillsInProgress = *row.SkillsInProgress
	}
	if row.NetworkGrowth != nil {
		payload.NetworkGrowth = *row.NetworkGrowth
	}
	return payload
}

// formatSession はセッション行を整形済みエントリに変換する。
// 1つの開始タイムスタンプから日付（YYYY-MM-DD）と12時間制の時刻を導出し、
// 所要時間は分単位の文字列にする。
func formatSession(row sessionRow) sessionEntry {
	entry := sessionEntry{
		ID:       row.ID,
		Title:    row.Title,
		Duration: fmt.Sprintf("%d min", row.Duration),
	}

	if ts, ok := parseSessionDate(row.SessionDate); ok {
		entry.Date = ts.Format("2006-01-02")
		entry.Time = ts.Format("03:04 PM")
	}

	if row.Mentor != nil {
		entry.MentorName = row.Mentor.Name
		if row.Mentor.AvatarURL != nil {
			entry.Avatar = *row.Mentor.AvatarURL
		}
	}
	return entry
}

// parseSessionDate はsession_dateカラムの値をパースする。
func parseSessionDate(value string) (time.Time, bool) {
	for _, layout := range sessionDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// formatMentor はメンター行を整形済みエントリに変換する。
// 評価と時間単価は浮動小数点に揃え、欠けている場合はデフォルト値を使う。
func formatMentor(row mentorRow) mentorEntry {
	entry := mentorEntry{
		ID:         row.ID,
		Name:       row.Name,
		Title:      row.Title,
		Rating:     defaultMentorRating,
		Reviews:    0,
		Skills:     []string{},
		HourlyRate: defaultMentorHourlyRate,
	}
	if row.Rating != nil {
		entry.Rating = *row.Rating
	}
	if row.Reviews != nil {
		entry.Reviews = *row.Reviews
	}
	if row.Skills != nil {
		entry.Skills = row.Skills
	}
	if row.HourlyRate != nil {
		entry.HourlyRate = *row.HourlyRate
	}
	return entry
}
