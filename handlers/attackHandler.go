package handlers

import (
	"net/http"
	"strconv"

	"rpgserver/combat/engine"
	"rpgserver/combat/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type submitAttackRequest struct {
	AttackerID string            `json:"attackerId" binding:"required"`
	TargetID   string            `json:"targetId" binding:"required"`
	RollResult engine.RollResult `json:"rollResult"`
	Weapon     engine.Weapon     `json:"weapon"`
}

type rollAttackRequest struct {
	AttackerID string `json:"attackerId" binding:"required"`
	TargetID   string `json:"targetId" binding:"required"`
	Attack     string `json:"attack"` // 空なら既定の攻撃
}

type validateAttackRequest struct {
	Override *int `json:"override"`
}

func (h *Handler) ListPendingAttacks(c *gin.Context) {
	s, ok := h.Sessions.Get(c.Param("sessionID"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"pendingAttacks": []engine.PendingAttack{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingAttacks": s.PendingAttacks()})
}

func (h *Handler) SubmitAttack(c *gin.Context) {
	var req submitAttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "attackerId and targetId are required")
		return
	}
	s, ok := h.session(c)
	if !ok || !h.mayAttackWith(c, s, req.AttackerID) {
		return
	}
	h.command(c, "submit-attack", func(s *session.CombatSession) (session.Result, error) {
		return s.SubmitAttack(c.Request.Context(), req.AttackerID, req.TargetID, req.RollResult, req.Weapon)
	})
}

func (h *Handler) RollAttack(c *gin.Context) {
	var req rollAttackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "attackerId and targetId are required")
		return
	}
	s, ok := h.session(c)
	if !ok || !h.mayAttackWith(c, s, req.AttackerID) {
		return
	}
	h.command(c, "roll-attack", func(s *session.CombatSession) (session.Result, error) {
		return s.RollAttack(c.Request.Context(), req.AttackerID, req.TargetID, req.Attack)
	})
}

// mayAttackWith はプレイヤーが自分のキャラクター以外で攻撃するのを拒否する。GMは全員を操作できる
func (h *Handler) mayAttackWith(c *gin.Context, s *session.CombatSession, attackerID string) bool {
	cl := claims(c)
	if cl.IsGM() {
		return true
	}
	cb, ok := s.Combatant(attackerID)
	if ok && cb.CharacterID != 0 && cb.CharacterID == cl.CharacterID {
		return true
	}
	h.Logger.Warn("Player attempted to attack with another combatant",
		zap.Uint("userID", cl.UserID), zap.String("attackerID", attackerID))
	c.JSON(http.StatusForbidden, gin.H{"error": "attacker is not your character"})
	return false
}

func (h *Handler) ValidateAttack(c *gin.Context) {
	index, ok := attackIndex(c)
	if !ok {
		return
	}
	var req validateAttackRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "無効なリクエストです")
			return
		}
	}
	h.command(c, "validate-attack", func(s *session.CombatSession) (session.Result, error) {
		return s.ValidateAttack(c.Request.Context(), index, req.Override)
	})
}

func (h *Handler) RejectAttack(c *gin.Context) {
	index, ok := attackIndex(c)
	if !ok {
		return
	}
	h.command(c, "reject-attack", func(s *session.CombatSession) (session.Result, error) {
		return s.RejectAttack(c.Request.Context(), index)
	})
}

func attackIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "index must be an integer")
		return 0, false
	}
	return index, true
}
