package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 閾値が0なら設定値
type rollDiceRequest struct {
	PoolSize           int `json:"poolSize"`
	SuccessThreshold   int `json:"successThreshold"`
	ExplosionThreshold int `json:"explosionThreshold"`
}

// RollDice はセッションに属さない自由ロール
func (h *Handler) RollDice(c *gin.Context) {
	var req rollDiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "無効なリクエストです")
		return
	}
	res, err := h.Sessions.Roll(req.PoolSize, req.SuccessThreshold, req.ExplosionThreshold)
	if err != nil {
		h.respondError(c, "roll-dice", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListBestiary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.Bestiary.List()})
}
