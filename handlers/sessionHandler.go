package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// onlineCharacter はGMのプレゼンス画面の1行
type onlineCharacter struct {
	CharacterID uint      `json:"characterId"`
	Name        string    `json:"name"`
	SessionID   string    `json:"sessionId"`
	ConnectedAt time.Time `json:"connectedAt"`
	InCombat    bool      `json:"inCombat"`
}

type activeSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// OnlineCharacters はセッションに接続中のキャラクターと戦闘参加状況を返す
func (h *Handler) OnlineCharacters(c *gin.Context) {
	sessionID := c.Param("sessionID")
	presence := h.Hub.Online(sessionID)

	var inCombat map[uint]bool
	if s, ok := h.Sessions.Get(sessionID); ok {
		ids := make([]uint, 0, len(presence))
		for _, p := range presence {
			ids = append(ids, p.CharacterID)
		}
		inCombat = s.InCombat(ids)
	}

	out := make([]onlineCharacter, 0, len(presence))
	for _, p := range presence {
		out = append(out, onlineCharacter{
			CharacterID: p.CharacterID,
			Name:        p.Name,
			SessionID:   p.SessionID,
			ConnectedAt: p.ConnectedAt,
			InCombat:    inCombat[p.CharacterID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"characters": out})
}

func (h *Handler) GetActiveSession(c *gin.Context) {
	id, ok := h.Sessions.ActiveSession(claims(c).UserID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id})
}

// SetActiveSession はGMが操作するセッションを切り替える
func (h *Handler) SetActiveSession(c *gin.Context) {
	var req activeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sessionId is required")
		return
	}
	cl := claims(c)
	s, err := h.Sessions.SetActive(cl.UserID, req.SessionID)
	if err != nil {
		h.respondError(c, "set-active-session", err)
		return
	}
	h.Logger.Info("Active session changed", zap.Uint("userID", cl.UserID), zap.String("sessionID", req.SessionID))
	c.JSON(http.StatusOK, gin.H{"sessionId": s.ID, "combat": s.Snapshot()})
}

// CloseSession は戦闘セッションを破棄する
func (h *Handler) CloseSession(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if !h.Sessions.Close(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "セッションを終了しました"})
}
