package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rpgserver/models"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	keyPrefix = "session:"
	// 再接続IDの有効期限
	SessionIDTTL = 24 * time.Hour
)

var ErrSessionIDNotFound = errors.New("reconnect session id not found")

// SessionInfo は再接続時に復元するクライアント情報
type SessionInfo struct {
	UserID      uint   `json:"userID"`
	CharacterID uint   `json:"characterID,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role"`
	// 最後に参加していたセッション
	JoinedSession string `json:"joinedSession,omitempty"`
}

// SessionIDStore は再接続用セッションIDをRedisに保存する
type SessionIDStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewSessionIDStore(rdb redis.Cmdable, logger *zap.Logger) *SessionIDStore {
	return &SessionIDStore{rdb: rdb, ttl: SessionIDTTL, logger: logger}
}

// ValidateSessionID checks the session ID in Redis and returns the stored client info.
func (s *SessionIDStore) ValidateSessionID(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if sessionID == "" {
		return nil, ErrSessionIDNotFound
	}

	raw, err := s.rdb.Get(ctx, keyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionIDNotFound
	}
	if err != nil {
		s.logger.Error("Failed to retrieve session info", zap.Error(err))
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.logger.Error("Failed to decode session info", zap.Error(err))
		return nil, fmt.Errorf("decode session info: %w", err)
	}
	if info.UserID == 0 || info.Role == "" {
		return nil, fmt.Errorf("invalid session info for %s", sessionID)
	}
	return &info, nil
}

// GenerateAndStoreSessionID は新しいIDを発行して保存する
func (s *SessionIDStore) GenerateAndStoreSessionID(ctx context.Context, client *models.Client, joinedSession string) (string, error) {
	sessionID := uuid.New().String()
	if err := s.Store(ctx, sessionID, client, joinedSession); err != nil {
		return "", err
	}
	return sessionID, nil
}

// Store は既存IDの内容を上書きし、有効期限を延ばす
func (s *SessionIDStore) Store(ctx context.Context, sessionID string, client *models.Client, joinedSession string) error {
	info := SessionInfo{
		UserID:        client.UserID,
		CharacterID:   client.CharacterID,
		Name:          client.Name,
		Role:          client.Role,
		JoinedSession: joinedSession,
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		s.logger.Error("Error encoding session info", zap.Error(err))
		return err
	}
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, encoded, s.ttl).Err(); err != nil {
		s.logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}
	return nil
}

func (s *SessionIDStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, keyPrefix+sessionID).Err()
}

// Client は保存された情報からクライアントを復元する
func (info *SessionInfo) Client() *models.Client {
	return &models.Client{
		UserID:      info.UserID,
		CharacterID: info.CharacterID,
		Name:        info.Name,
		Role:        info.Role,
	}
}
