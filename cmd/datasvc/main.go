// ローカルデータサービスのエントリポイント。
// ホスト型データベースのREST APIサブセットをSQLite上で提供し、
// 外部サービス無しでのローカル開発を可能にする。
package main

import (
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/DLOADIN/Eduwealthier/internal/datasvc"
)

// config はデータサービスの環境変数設定。
type config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT,default=8090"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `env:"DATASVC_DB,default=datasvc.db"`
}

func main() {
	var cfg config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		logrus.WithError(err).Fatal("環境変数の読み込みに失敗")
	}

	server, err := datasvc.NewServer(cfg.Port, cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("データサービスの初期化に失敗")
	}

	logrus.WithFields(logrus.Fields{
		"port": cfg.Port,
		"db":   cfg.DBPath,
	}).Info("データサービスを起動します")
	if err := server.Run(); err != nil {
		logrus.WithError(err).Fatal("データサービスの起動に失敗")
	}
}
