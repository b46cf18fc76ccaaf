package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rpgserver/models"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := models.DefaultConfig()
	if config.Port != want.Port || config.SessionIdleTTL != want.SessionIdleTTL || config.CombatEndPolicy != "retain" {
		t.Errorf("config = %+v", config)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"db_host":"db.internal","port":"9000","success_threshold":6,"redis_addr":"cache:6379"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("SESSION_IDLE_TTL", "30m")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.DBHost != "db.internal" || config.RedisAddr != "cache:6379" {
		t.Errorf("file values lost: %+v", config)
	}
	if config.SuccessThreshold != 6 {
		t.Errorf("SuccessThreshold = %d, want 6", config.SuccessThreshold)
	}
	if config.Port != "9100" {
		t.Errorf("Port = %q, want env override", config.Port)
	}
	if len(config.AllowedOrigins) != 2 || config.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", config.AllowedOrigins)
	}
	if config.SessionIdleTTL != 30*time.Minute {
		t.Errorf("SessionIdleTTL = %v", config.SessionIdleTTL)
	}
	if config.ExplosionThreshold != 10 {
		t.Errorf("ExplosionThreshold = %d, want default", config.ExplosionThreshold)
	}
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() accepted malformed JSON")
	}
}

func TestUpdateCharacterFields_RejectsUnknownColumn(t *testing.T) {
	r := &CharacterRepository{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := r.UpdateCharacterFields(ctx, 1, map[string]int{"user_id": 2}); err == nil {
		t.Fatal("UpdateCharacterFields() accepted a non-mirrored column")
	}
}

func TestDSN(t *testing.T) {
	got := DSN(models.Config{DBHost: "h", DBUser: "u", DBName: "n", DBPassword: "p", DBSSLMode: "disable"})
	if got != "host=h user=u dbname=n password=p sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
}
