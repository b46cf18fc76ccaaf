package main

import (
	"context"

	"rpgserver/database"
	"rpgserver/models"

	"go.uber.org/zap"
)

// キャラクターシートのテーブルを作成する。サーバーとは別に一度だけ実行する
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // ロガーの終了処理

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}
	db, err := database.InitPostgreSQL(context.Background(), config, logger)
	if err != nil {
		logger.Fatal("データベースへの接続に失敗しました", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("SQLDBの取得に失敗しました", zap.Error(err))
	}
	defer sqlDB.Close() // SQLDBを閉じる

	// マイグレーションを実行
	if err := db.AutoMigrate(&models.Character{}); err != nil {
		logger.Fatal("Error migrating characters table", zap.Error(err))
	}
	logger.Info("Character table created successfully")
}
