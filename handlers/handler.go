package handlers

import (
	"context"
	"errors"
	"net/http"

	"rpgserver/combat/bestiary"
	"rpgserver/combat/broadcast"
	"rpgserver/combat/engine"
	"rpgserver/combat/session"
	"rpgserver/middlewares"
	"rpgserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CharacterService はキャラクターシートの読み書き
type CharacterService interface {
	GetCharacter(ctx context.Context, id uint) (*models.Character, error)
	UpdateCharacter(ctx context.Context, id uint, req models.CharacterUpdateRequest) (*models.Character, error)
}

// Handler はHTTPコマンドの依存をまとめる
type Handler struct {
	Sessions   *session.Manager
	Hub        *broadcast.Hub
	Bestiary   *bestiary.Bestiary
	Characters CharacterService
	Logger     *zap.Logger
}

// Routes はHTTPルーティングを登録する。全ルートでJWTが必要
func (h *Handler) Routes(r gin.IRouter, key []byte) {
	authed := r.Group("/", middlewares.TokenAuthentication(key, h.Logger))
	gm := authed.Group("/", middlewares.RequireGM(h.Logger))

	// 戦闘コマンド
	gm.POST("/sessions/:sessionID/combat/start", h.StartCombat)
	gm.POST("/sessions/:sessionID/combat/end", h.EndCombat)
	gm.POST("/sessions/:sessionID/combat/next-turn", h.NextTurn)
	gm.POST("/sessions/:sessionID/combat/combatants", h.AddCombatant)
	gm.PATCH("/sessions/:sessionID/combat/combatants/:combatantID", h.UpdateCombatant)
	gm.DELETE("/sessions/:sessionID/combat/combatants/:combatantID", h.RemoveCombatant)
	gm.PUT("/sessions/:sessionID/combat/order", h.ReorderCombatants)
	authed.GET("/sessions/:sessionID/combat", h.GetCombat)

	// 攻撃ワークフロー
	gm.GET("/sessions/:sessionID/attacks", h.ListPendingAttacks)
	authed.POST("/sessions/:sessionID/attacks", h.SubmitAttack)
	authed.POST("/sessions/:sessionID/attacks/roll", h.RollAttack)
	gm.POST("/sessions/:sessionID/attacks/:index/validate", h.ValidateAttack)
	gm.POST("/sessions/:sessionID/attacks/:index/reject", h.RejectAttack)

	// セッション管理
	gm.GET("/sessions/:sessionID/online", h.OnlineCharacters)
	gm.GET("/gm/active-session", h.GetActiveSession)
	gm.PUT("/gm/active-session", h.SetActiveSession)
	gm.DELETE("/sessions/:sessionID", h.CloseSession)

	authed.POST("/dice/roll", h.RollDice)
	authed.GET("/bestiary", h.ListBestiary)
	authed.GET("/characters/:id", h.GetCharacter)
	authed.PUT("/characters/:id", h.UpdateCharacter)
}

// respondError はエンジンのエラーをHTTPステータスに変換する
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, models.ErrCharacterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrOutOfRangeIndex):
		status = http.StatusConflict
	}
	fields := []zap.Field{zap.String("op", op), zap.String("sessionID", c.Param("sessionID")), zap.Error(err)}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Command failed", fields...)
		c.JSON(status, gin.H{"error": "内部エラーが発生しました"})
		return
	}
	h.Logger.Info("Command rejected", fields...)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// claims は TokenAuthentication の後でのみ呼ぶ
func claims(c *gin.Context) *models.MyClaims {
	cl, _ := middlewares.ClaimsFromContext(c)
	return cl
}
