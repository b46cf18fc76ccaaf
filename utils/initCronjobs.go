package utils

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// IdleSweeper は一定時間操作のないセッションを閉じる
type IdleSweeper interface {
	SweepIdle(ttl time.Duration) []string
}

// CronCleaner はアイドルセッションの定期削除を登録して開始する。返り値の Stop で止める
func CronCleaner(spec string, ttl time.Duration, sessions IdleSweeper, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		closed := sessions.SweepIdle(ttl)
		if len(closed) > 0 {
			logger.Info("アイドル状態のセッションを削除しました", zap.Strings("sessions", closed), zap.Duration("ttl", ttl))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
