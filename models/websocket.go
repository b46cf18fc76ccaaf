package models

import (
	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義
type Client struct {
	Conn        *websocket.Conn
	UserID      uint   // JWTから抽出したユーザーID
	CharacterID uint   // プレイヤーのみ
	Name        string // プレゼンス表示名
	Role        string // "gm" or "player"
}

func (c *Client) IsGM() bool { return c.Role == RoleGM }

// WsMessage はクライアントとの間でやり取りするメッセージの共通形式
type WsMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// クライアントから受け取るメッセージ
type IncomingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

// サーバーから送るイベント
const (
	EventCombatUpdate         = "combat-update"
	EventPendingAttacksUpdate = "pending-attacks-update"
	EventOnlineCharacters     = "online-characters-update"
	EventCharacterUpdate      = "character-update"
	EventSessionID            = "session-id"
	EventError                = "error"
	MessageJoinSession        = "join-session"
	MessageLeaveSession       = "leave-session"
	MessageGMSetActiveSession = "gm-set-active-session"
)
