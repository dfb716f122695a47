package bff

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DLOADIN/Eduwealthier/pkg/authn"
	"github.com/DLOADIN/Eduwealthier/pkg/middleware"
	"github.com/DLOADIN/Eduwealthier/pkg/supabase"
)

// serviceName はヘルスチェックで返すサービス識別子。
const serviceName = "eduwealthier-api"

// Server はBFFサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// verifier はBearerトークンの検証器。
	verifier *authn.Verifier
	// data はホスト型データベースへのクライアント。
	data *supabase.Client
}

// NewServer は新しいBFFサーバーを生成する。
// 依存（トークン検証器・データベースクライアント）はプロセス起動時に
// 1度だけ生成し、コンストラクタ経由で明示的に渡す。
func NewServer(port, frontendURL string, verifier *authn.Verifier, data *supabase.Client) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(frontendURL))

	s := &Server{
		router:   router,
		port:     port,
		verifier: verifier,
		data:     data,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（認証不要）
	s.router.GET("/api/health", s.handleHealth())

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api")
	api.Use(middleware.Auth(s.verifier))
	{
		api.GET("/dashboard", s.handleDashboard())
	}
}

// handleHealth はヘルスチェックハンドラを返す。
// タイムスタンプはUTCのRFC3339に統一する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
