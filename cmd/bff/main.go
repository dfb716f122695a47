// BFFサービスのエントリポイント。
// JWT検証、ダッシュボードデータの集約、フロントエンドへのAPI提供を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/DLOADIN/Eduwealthier/internal/bff"
	"github.com/DLOADIN/Eduwealthier/pkg/authn"
	"github.com/DLOADIN/Eduwealthier/pkg/supabase"
)

// config はBFFサービスの環境変数設定。
type config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT,default=8000"`
	// SupabaseURL はデータベースREST APIのベースURL。
	SupabaseURL string `env:"SUPABASE_URL,required"`
	// SupabaseKey はデータベースREST APIのサービスキー。
	SupabaseKey string `env:"SUPABASE_KEY,required"`
	// Auth0Domain はIDプロバイダテナントのドメイン。
	Auth0Domain string `env:"AUTH0_DOMAIN,required"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `env:"FRONTEND_URL,default=http://localhost:3000"`
}

func main() {
	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		logrus.WithError(err).Fatal("環境変数の読み込みに失敗")
	}

	verifier, err := authn.NewVerifier(cfg.Auth0Domain)
	if err != nil {
		logrus.WithError(err).Fatal("トークン検証器の初期化に失敗")
	}

	data := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey)
	server := bff.NewServer(cfg.Port, cfg.FrontendURL, verifier, data)

	logrus.WithField("port", cfg.Port).Info("BFFサービスを起動します")
	if err := server.Run(); err != nil {
		logrus.WithError(err).Fatal("BFFサービスの起動に失敗")
	}
}
