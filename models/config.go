package models

import "time"

// Config はサーバー全体の設定。config.json の値を環境変数で上書きする
type Config struct {
	DBHost     string `json:"db_host" env:"DB_HOST"`
	DBUser     string `json:"db_user" env:"DB_USER"`
	DBPassword string `json:"db_password" env:"DB_PASSWORD"`
	DBName     string `json:"db_name" env:"DB_NAME"`
	DBSSLMode  string `json:"db_sslmode" env:"DB_SSLMODE"`

	RedisAddr     string `json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `json:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"REDIS_DB"`

	JWTSecret      string   `json:"jwt_secret" env:"JWT_SECRET"`
	Port           string   `json:"port" env:"PORT"`
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	CombatEndPolicy    string        `json:"combat_end_policy" env:"COMBAT_END_POLICY"`
	SessionIdleTTL     time.Duration `json:"session_idle_ttl" env:"SESSION_IDLE_TTL"`
	SessionSweepSpec   string        `json:"session_sweep_spec" env:"SESSION_SWEEP_SPEC"`
	SuccessThreshold   int           `json:"success_threshold" env:"SUCCESS_THRESHOLD"`
	ExplosionThreshold int           `json:"explosion_threshold" env:"EXPLOSION_THRESHOLD"`
	BestiaryPath       string        `json:"bestiary_path" env:"BESTIARY_PATH"`
	SendBuffer         int           `json:"send_buffer" env:"SEND_BUFFER"`

	LogLevel  string `json:"log_level" env:"LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"LOG_FORMAT"` // json か console
}

// DefaultConfig は設定ファイルも環境変数もない場合の値
func DefaultConfig() Config {
	return Config{
		DBHost:             "localhost",
		DBSSLMode:          "disable",
		RedisAddr:          "localhost:6379",
		Port:               "8080",
		AllowedOrigins:     []string{"http://localhost:3000"},
		CombatEndPolicy:    "retain",
		SessionIdleTTL:     2 * time.Hour,
		SessionSweepSpec:   "@every 10m",
		SuccessThreshold:   7,
		ExplosionThreshold: 10,
		BestiaryPath:       "bestiary.yaml",
		SendBuffer:         64,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}
