package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rpgserver/combat/bestiary"   //NPCの雛形
	"rpgserver/combat/broadcast"  //WebSocketへの配信とプレゼンス
	"rpgserver/combat/connection" //WebSocket接続の管理
	cdb "rpgserver/combat/database"
	"rpgserver/combat/engine"
	"rpgserver/combat/session" //セッションごとの戦闘状態
	"rpgserver/database"       //設定とPostgreSQL/Redisの初期化
	"rpgserver/handlers"       //HTTPコマンド
	"rpgserver/utils"          //ロガーの初期化とCronジョブ(アイドルセッションの削除)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func main() {
	// ロガーの設定も含むので設定ファイルを先に読む
	config, err := database.LoadConfig("config.json")
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}

	logger, err := utils.InitLogger(config.LogLevel, config.LogFormat) // ロガーの初期化
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // ロガーのクリーンアップ

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	endPolicy, err := engine.ParseEndPolicy(config.CombatEndPolicy)
	if err != nil {
		logger.Fatal("Invalid COMBAT_END_POLICY", zap.Error(err))
	}

	// 並行してPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	initGroup, initCtx := errgroup.WithContext(ctx)
	initGroup.Go(func() (err error) {
		db, err = database.InitPostgreSQL(initCtx, config, logger)
		return err
	})
	initGroup.Go(func() (err error) {
		rdb, err = database.InitRedis(initCtx, config, logger)
		return err
	})
	if err := initGroup.Wait(); err != nil {
		logger.Fatal("データストアの初期化に失敗しました", zap.Error(err))
	}
	defer rdb.Close()

	beasts, err := bestiary.Load(config.BestiaryPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("Bestiary file not found, starting with an empty bestiary", zap.String("path", config.BestiaryPath))
		beasts = bestiary.Empty()
	case err != nil:
		logger.Fatal("Failed to load bestiary", zap.Error(err))
	}

	characters := database.NewCharacterRepository(db, logger)
	hub := broadcast.NewHub(config.SendBuffer, logger)
	sessions, err := session.NewManager(session.Options{
		EndPolicy: endPolicy,
		Roll: engine.RollConfig{
			SuccessThreshold:   config.SuccessThreshold,
			ExplosionThreshold: config.ExplosionThreshold,
		},
	}, characters, hub, logger)
	if err != nil {
		logger.Fatal("Failed to create session manager", zap.Error(err))
	}

	// クーロンスケジューラのセットアップと呼び出し
	cleaner, err := utils.CronCleaner(config.SessionSweepSpec, config.SessionIdleTTL, sessions, logger)
	if err != nil {
		logger.Fatal("Invalid SESSION_SWEEP_SPEC", zap.Error(err))
	}
	defer cleaner.Stop()

	key := []byte(config.JWTSecret)
	ws := &connection.Handler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowedOrigin(config.AllowedOrigins),
		},
		Hub:       hub,
		Sessions:  sessions,
		Reconnect: cdb.NewSessionIDStore(rdb, logger),
		JWTKey:    key,
		Logger:    logger,
	}

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	h := &handlers.Handler{
		Sessions:   sessions,
		Hub:        hub,
		Bestiary:   beasts,
		Characters: characters,
		Logger:     logger,
	}
	h.Routes(router, key)
	router.GET("/ws", func(c *gin.Context) {
		ws.HandleConnections(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

// allowedOrigin はWebSocketのOriginをCORSと同じ一覧で検査する
func allowedOrigin(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
