package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLogger_Level(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"production default", "", "json", zapcore.InfoLevel, zapcore.DebugLevel},
		{"console default", "", "console", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"explicit warn", "warn", "json", zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := InitLogger(tt.level, tt.format)
			if err != nil {
				t.Fatalf("InitLogger() error = %v", err)
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %v disabled", tt.enabled)
			}
			if logger.Core().Enabled(tt.muted) {
				t.Errorf("level %v enabled", tt.muted)
			}
		})
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	if _, err := InitLogger("loud", "json"); err == nil {
		t.Error("InitLogger(loud) succeeded")
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	want := map[string]zapcore.Level{
		"/ok":      zapcore.InfoLevel,
		"/missing": zapcore.WarnLevel,
		"/boom":    zapcore.ErrorLevel,
	}
	for path, level := range want {
		logs.TakeAll()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		entries := logs.TakeAll()
		if len(entries) != 1 {
			t.Fatalf("%s: %d entries, want 1", path, len(entries))
		}
		if entries[0].Level != level {
			t.Errorf("%s: level = %v, want %v", path, entries[0].Level, level)
		}
		if got := entries[0].ContextMap()["path"]; got != path {
			t.Errorf("%s: path field = %v", path, got)
		}
	}
}
