package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"rpgserver/combat/broadcast"
	"rpgserver/combat/session"
	"rpgserver/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gorilla/websocket"
)

// Handler upgrades /ws requests and runs one read loop and one write loop per client.
type Handler struct {
	Upgrader  websocket.Upgrader
	Hub       *broadcast.Hub
	Sessions  *session.Manager
	Reconnect ReconnectStore
	JWTKey    []byte
	Logger    *zap.Logger
}

type clientConn struct {
	h           *Handler
	conn        *websocket.Conn
	sub         *broadcast.Subscriber
	client      *models.Client
	reconnectID string
	logger      *zap.Logger
}

// WebSocket接続へのアップグレードを行う関数
func (h *Handler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cc, err := FetchClientContext(ctx, r, h.JWTKey, h.Reconnect, h.Logger)
	if err != nil {
		h.Logger.Error("Error fetching client context", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade がエラーレスポンスを書き込み済み
		h.Logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}
	cc.Client.Conn = conn

	c := &clientConn{
		h:      h,
		conn:   conn,
		sub:    h.Hub.Register(cc.Client),
		client: cc.Client,
		logger: h.Logger.With(zap.Uint("userID", cc.Client.UserID), zap.String("role", cc.Client.Role)),
	}
	c.issueSessionID(ctx, cc.JoinedSession)
	if cc.JoinedSession != "" {
		c.join(ctx, cc.JoinedSession)
	}
	c.run(ctx)
}

func (c *clientConn) run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, errConnClosed) {
		c.logger.Warn("WebSocket connection ended with error", zap.Error(err))
	}
	c.h.Hub.Unregister(c.sub)
	c.logger.Info("Client removed")
}

// issueSessionID は再接続用IDを発行してクライアントに送る。Redisが落ちていても接続は続ける
func (c *clientConn) issueSessionID(ctx context.Context, joined string) {
	id, err := c.h.Reconnect.GenerateAndStoreSessionID(ctx, c.client, joined)
	if err != nil {
		c.logger.Warn("Failed to issue reconnect session ID", zap.Error(err))
		return
	}
	c.reconnectID = id
	c.h.Hub.SendTo(c.sub, models.EventSessionID, map[string]any{
		"sessionID": id,
		"userID":    c.client.UserID,
	})
}

// dispatch はクライアントからのメッセージを処理する
func (c *clientConn) dispatch(ctx context.Context, data []byte) {
	var msg models.IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to decode message", zap.Error(err))
		c.sendError("malformed message")
		return
	}

	switch msg.Type {
	case models.MessageJoinSession:
		c.join(ctx, msg.SessionID)
	case models.MessageLeaveSession:
		c.h.Hub.Leave(c.sub)
		c.rememberSession(ctx, "")
	case models.MessageGMSetActiveSession:
		if !c.client.IsGM() {
			c.sendError("GM role required")
			return
		}
		if _, err := c.h.Sessions.SetActive(c.client.UserID, msg.SessionID); err != nil {
			c.sendError(err.Error())
			return
		}
		c.join(ctx, msg.SessionID)
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
		c.sendError("unknown message type " + msg.Type)
	}
}

// join はルームに参加し、現在の戦闘状態を送る
func (c *clientConn) join(ctx context.Context, sessionID string) {
	if sessionID == "" {
		c.sendError("sessionId is required")
		return
	}
	c.h.Hub.Join(c.sub, sessionID)
	if s, ok := c.h.Sessions.Get(sessionID); ok {
		c.h.Hub.SendTo(c.sub, models.EventCombatUpdate, s.Snapshot())
		if c.client.IsGM() {
			c.h.Hub.SendTo(c.sub, models.EventPendingAttacksUpdate, s.PendingAttacks())
		}
	}
	c.rememberSession(ctx, sessionID)
	c.logger.Info("Client joined session", zap.String("sessionID", sessionID))
}

func (c *clientConn) rememberSession(ctx context.Context, sessionID string) {
	if c.reconnectID == "" {
		return
	}
	if err := c.h.Reconnect.Store(ctx, c.reconnectID, c.client, sessionID); err != nil {
		c.logger.Warn("Failed to update reconnect session", zap.Error(err))
	}
}

func (c *clientConn) sendError(message string) {
	c.h.Hub.SendTo(c.sub, models.EventError, map[string]string{"error": message})
}
