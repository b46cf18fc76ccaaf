package handlers

import (
	"net/http"
	"strconv"

	"rpgserver/combat/engine"
	"rpgserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// characterID はパスのIDを読み、本人かGMでなければ拒否する
func (h *Handler) characterID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid character id")
		return 0, false
	}
	cl := claims(c)
	if !cl.IsGM() && cl.CharacterID != uint(id) {
		h.Logger.Warn("Character access denied", zap.Uint("userID", cl.UserID), zap.Uint64("characterID", id))
		c.JSON(http.StatusForbidden, gin.H{"error": "not your character"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) GetCharacter(c *gin.Context) {
	id, ok := h.characterID(c)
	if !ok {
		return
	}
	ch, err := h.Characters.GetCharacter(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "get-character", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// UpdateCharacter はシートを部分更新し、持ち主の画面へ戦闘に関わる値を通知する
func (h *Handler) UpdateCharacter(c *gin.Context) {
	id, ok := h.characterID(c)
	if !ok {
		return
	}
	var req models.CharacterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "無効なリクエストです")
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	ch, err := h.Characters.UpdateCharacter(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, "update-character", err)
		return
	}
	h.Hub.PublishCharacterUpdate(ch.ID, map[string]int{
		engine.FieldBlessure: ch.Blessure,
		engine.FieldFatigue:  ch.Fatigue,
		engine.FieldArmure:   ch.Armure,
		engine.FieldSeuil:    ch.Seuil,
	})
	c.JSON(http.StatusOK, ch)
}
