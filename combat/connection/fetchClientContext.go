package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"rpgserver/auth"
	"rpgserver/combat/database"
	"rpgserver/models"

	"go.uber.org/zap"
)

var ErrSessionMismatch = errors.New("reconnect session belongs to another user")

// ReconnectStore は再接続用セッションIDの保存先
type ReconnectStore interface {
	ValidateSessionID(ctx context.Context, sessionID string) (*database.SessionInfo, error)
	GenerateAndStoreSessionID(ctx context.Context, client *models.Client, joinedSession string) (string, error)
	Store(ctx context.Context, sessionID string, client *models.Client, joinedSession string) error
	Delete(ctx context.Context, sessionID string) error
}

// ClientContext はクライアントのセッション情報を保持するための構造体です。
type ClientContext struct {
	Client *models.Client
	Claims *models.MyClaims
	// 再接続で復元したセッション
	JoinedSession string
}

// TokenValidation はヘッダーまたはクエリのトークンを検証する。ブラウザのWebSocketはヘッダーを送れない
func TokenValidation(r *http.Request, key []byte, logger *zap.Logger) (*models.MyClaims, error) {
	tokenString := auth.BearerToken(r.Header.Get("Authorization"))
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	claims, err := auth.ParseToken(tokenString, key)
	if err != nil {
		logger.Error("Failed to validate token", zap.Error(err))
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claims, nil
}

func FetchClientContext(ctx context.Context, r *http.Request, key []byte, store ReconnectStore, logger *zap.Logger) (*ClientContext, error) {
	claims, err := TokenValidation(r, key, logger)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	cc := &ClientContext{
		Client: &models.Client{
			UserID:      claims.UserID,
			CharacterID: claims.CharacterID,
			Name:        claims.Name,
			Role:        claims.Role,
		},
		Claims: claims,
	}

	// セッションIDの検証と復元
	reconnectID := r.Header.Get("SessionID")
	if reconnectID == "" {
		reconnectID = r.URL.Query().Get("sessionId")
	}
	if reconnectID == "" {
		return cc, nil
	}
	info, err := store.ValidateSessionID(ctx, reconnectID)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired session ID: %w", err)
	}
	if info.UserID != claims.UserID {
		return nil, ErrSessionMismatch
	}
	cc.JoinedSession = info.JoinedSession
	// 旧セッションの削除
	if err := store.Delete(ctx, reconnectID); err != nil {
		logger.Warn("Failed to delete old session ID", zap.Error(err))
	}
	return cc, nil
}
