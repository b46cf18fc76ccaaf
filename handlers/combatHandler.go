package handlers

import (
	"fmt"
	"net/http"

	"rpgserver/combat/engine"
	"rpgserver/combat/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// addCombatantRequest は素のデータ、bestiaryのテンプレート、キャラクターIDのいずれかで戦闘員を追加する
type addCombatantRequest struct {
	engine.CombatantData
	Template string `json:"template,omitempty"`
}

type reorderRequest struct {
	Order []string `json:"order" binding:"required"`
}

// session はコマンド対象のセッションを取得し、なければ作る
func (h *Handler) session(c *gin.Context) (*session.CombatSession, bool) {
	s, err := h.Sessions.GetOrCreate(c.Param("sessionID"))
	if err != nil {
		h.respondError(c, "session", err)
		return nil, false
	}
	return s, true
}

// command は引数なしのコマンドを実行して結果を返す
func (h *Handler) command(c *gin.Context, op string, fn func(s *session.CombatSession) (session.Result, error)) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := fn(s)
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	if res.Warning != "" {
		h.Logger.Warn("Command committed with warning", zap.String("op", op), zap.String("sessionID", s.ID), zap.String("warning", res.Warning))
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) StartCombat(c *gin.Context) {
	h.command(c, "start", func(s *session.CombatSession) (session.Result, error) {
		return s.Start(c.Request.Context())
	})
}

func (h *Handler) EndCombat(c *gin.Context) {
	h.command(c, "end", func(s *session.CombatSession) (session.Result, error) {
		return s.End(c.Request.Context())
	})
}

func (h *Handler) NextTurn(c *gin.Context) {
	h.command(c, "next-turn", func(s *session.CombatSession) (session.Result, error) {
		return s.NextTurn(c.Request.Context())
	})
}

func (h *Handler) AddCombatant(c *gin.Context) {
	var req addCombatantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "無効なリクエストです")
		return
	}
	if req.Template != "" && req.CharacterID != 0 {
		badRequest(c, "template and characterId are mutually exclusive")
		return
	}

	h.command(c, "add-combatant", func(s *session.CombatSession) (session.Result, error) {
		ctx := c.Request.Context()
		switch {
		case req.CharacterID != 0:
			return s.AddCharacter(ctx, req.CharacterID, req.Initiative, req.InitiativeRoll)
		case req.Template != "":
			tpl, ok := h.Bestiary.Get(req.Template)
			if !ok {
				return session.Result{}, fmt.Errorf("%w: bestiary template %q", engine.ErrNotFound, req.Template)
			}
			data := tpl.Combatant(req.Name, req.Initiative)
			data.InitiativeRoll = req.InitiativeRoll
			data.Effects = req.Effects
			return s.AddCombatant(ctx, data)
		default:
			return s.AddCombatant(ctx, req.CombatantData)
		}
	})
}

func (h *Handler) UpdateCombatant(c *gin.Context) {
	var patch engine.CombatantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "無効なリクエストです")
		return
	}
	h.command(c, "update-combatant", func(s *session.CombatSession) (session.Result, error) {
		return s.UpdateCombatant(c.Request.Context(), c.Param("combatantID"), patch)
	})
}

func (h *Handler) RemoveCombatant(c *gin.Context) {
	h.command(c, "remove-combatant", func(s *session.CombatSession) (session.Result, error) {
		return s.RemoveCombatant(c.Request.Context(), c.Param("combatantID"))
	})
}

func (h *Handler) ReorderCombatants(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "order is required")
		return
	}
	h.command(c, "reorder", func(s *session.CombatSession) (session.Result, error) {
		return s.Reorder(c.Request.Context(), req.Order)
	})
}

// GetCombat は現在のスナップショット。まだ作られていないセッションは空の状態を返す
func (h *Handler) GetCombat(c *gin.Context) {
	s, ok := h.Sessions.Get(c.Param("sessionID"))
	if !ok {
		c.JSON(http.StatusOK, engine.New().Snapshot())
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}
