package session

//go:generate go tool mockgen -destination=./mocks/session_mock.go -package=mocks . CharacterStore,Publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rpgserver/combat/dice"
	"rpgserver/combat/engine"
	"rpgserver/models"
)

// CharacterStore はキャラクターシートの永続化先
type CharacterStore interface {
	GetCharacter(ctx context.Context, id uint) (*models.Character, error)
	UpdateCharacterFields(ctx context.Context, id uint, fields map[string]int) error
}

// Publisher は戦闘状態をクライアントへ配信する。呼び出しはブロックしてはならない
type Publisher interface {
	PublishCombat(sessionID string, snapshot engine.Snapshot)
	PublishPendingAttacks(sessionID string, attacks []engine.PendingAttack)
	PublishCharacterUpdate(characterID uint, fields map[string]int)
	CloseSession(sessionID string)
}

// ErrSessionClosed は破棄済みのセッションへのコマンド。GetOrCreate で作り直せる
var ErrSessionClosed = fmt.Errorf("combat session closed: %w", engine.ErrNotFound)

// Options はセッションごとの戦闘ルール
type Options struct {
	EndPolicy engine.EndPolicy
	Roll      engine.RollConfig
}

// Result はコマンドの応答
type Result struct {
	Combat    engine.Snapshot        `json:"combat"`
	Combatant *engine.Combatant      `json:"combatant,omitempty"`
	Attack    *engine.PendingAttack  `json:"attack,omitempty"`
	Pending   []engine.PendingAttack `json:"pendingAttacks,omitempty"`
	Expired   []engine.Combatant     `json:"expired,omitempty"`
	Damage    *int                   `json:"damage,omitempty"`
	Warning   string                 `json:"warning,omitempty"`
}

type publishScope int

const (
	publishCombat publishScope = 1 << iota
	publishPending
)

// mirror はロック解放後にキャラクターストアへ書き戻す内容
type mirror struct {
	characterID uint
	fields      map[string]int
}

// CombatSession serializes every command of one GM session. Publication happens while the
// lock is held so clients observe snapshots in command order; store writes happen after.
type CombatSession struct {
	ID string

	mu           sync.Mutex
	combat       *engine.Combat
	src          dice.Source
	lastActivity time.Time
	closed       bool

	opts   Options
	store  CharacterStore
	pub    Publisher
	logger *zap.Logger
	now    func() time.Time
}

func newCombatSession(id string, src dice.Source, opts Options, store CharacterStore, pub Publisher, logger *zap.Logger, now func() time.Time) *CombatSession {
	return &CombatSession{
		ID:           id,
		combat:       engine.New(),
		src:          src,
		lastActivity: now(),
		opts:         opts,
		store:        store,
		pub:          pub,
		logger:       logger.With(zap.String("sessionID", id)),
		now:          now,
	}
}

// run はロック内でコマンドを実行し、配信まで行う
func (s *CombatSession) run(ctx context.Context, op string, scope publishScope, fn func(c *engine.Combat, res *Result) (*mirror, error)) (Result, error) {
	var res Result

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	}
	m, err := fn(s.combat, &res)
	if err != nil {
		s.mu.Unlock()
		s.logger.Info("Combat command rejected", zap.String("op", op), zap.Error(err))
		return Result{}, err
	}
	s.lastActivity = s.now()
	res.Combat = s.combat.Snapshot()
	if scope&publishCombat != 0 {
		s.pub.PublishCombat(s.ID, res.Combat)
	}
	if scope&publishPending != 0 {
		s.pub.PublishPendingAttacks(s.ID, s.combat.PendingAttacks())
	}
	s.mu.Unlock()

	s.logger.Info("Combat command applied", zap.String("op", op), zap.Uint64("version", res.Combat.Version))
	if m != nil && m.characterID != 0 && len(m.fields) > 0 {
		res.Warning = s.writeMirror(ctx, m)
	}
	return res, nil
}

// writeMirror は失敗しても戦闘状態を巻き戻さず、警告文を返す
func (s *CombatSession) writeMirror(ctx context.Context, m *mirror) string {
	if err := s.store.UpdateCharacterFields(ctx, m.characterID, m.fields); err != nil {
		s.logger.Warn("Failed to mirror combat changes to character",
			zap.Uint("characterID", m.characterID), zap.Any("fields", m.fields), zap.Error(err))
		return fmt.Sprintf("character %d was not updated: %v", m.characterID, err)
	}
	s.pub.PublishCharacterUpdate(m.characterID, m.fields)
	return ""
}

func (s *CombatSession) Start(ctx context.Context) (Result, error) {
	return s.run(ctx, "start", publishCombat, func(c *engine.Combat, _ *Result) (*mirror, error) {
		return nil, c.Start()
	})
}

func (s *CombatSession) NextTurn(ctx context.Context) (Result, error) {
	return s.run(ctx, "next-turn", publishCombat, func(c *engine.Combat, res *Result) (*mirror, error) {
		expired, err := c.NextTurn()
		res.Expired = expired
		return nil, err
	})
}

func (s *CombatSession) End(ctx context.Context) (Result, error) {
	return s.run(ctx, "end", publishCombat|publishPending, func(c *engine.Combat, _ *Result) (*mirror, error) {
		c.End(s.opts.EndPolicy)
		return nil, nil
	})
}

// AddCombatant は入力値そのままで戦闘員を追加する
func (s *CombatSession) AddCombatant(ctx context.Context, data engine.CombatantData) (Result, error) {
	return s.run(ctx, "add-combatant", publishCombat, func(c *engine.Combat, res *Result) (*mirror, error) {
		cb, err := c.Add(data)
		if err != nil {
			return nil, err
		}
		res.Combatant = &cb
		return nil, nil
	})
}

// AddCharacter はキャラクターストアのシートから戦闘員を作る
func (s *CombatSession) AddCharacter(ctx context.Context, characterID uint, initiative int, initiativeRoll string) (Result, error) {
	ch, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		if errors.Is(err, models.ErrCharacterNotFound) {
			return Result{}, fmt.Errorf("%w: character %d", engine.ErrNotFound, characterID)
		}
		return Result{}, err
	}
	data := CombatantFromCharacter(ch)
	data.Initiative = initiative
	data.InitiativeRoll = initiativeRoll
	return s.AddCombatant(ctx, data)
}

func (s *CombatSession) UpdateCombatant(ctx context.Context, id string, patch engine.CombatantPatch) (Result, error) {
	return s.run(ctx, "update-combatant", publishCombat, func(c *engine.Combat, res *Result) (*mirror, error) {
		cb, fields, err := c.Update(id, patch)
		if err != nil {
			return nil, err
		}
		res.Combatant = &cb
		return &mirror{characterID: cb.CharacterID, fields: fields}, nil
	})
}

func (s *CombatSession) RemoveCombatant(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove-combatant", publishCombat, func(c *engine.Combat, res *Result) (*mirror, error) {
		cb, err := c.Remove(id)
		if err != nil {
			return nil, err
		}
		res.Combatant = &cb
		return nil, nil
	})
}

func (s *CombatSession) Reorder(ctx context.Context, ids []string) (Result, error) {
	return s.run(ctx, "reorder", publishCombat, func(c *engine.Combat, _ *Result) (*mirror, error) {
		return nil, c.Reorder(ids)
	})
}

// SubmitAttack は攻撃を保留キューに積む。配信はGMのみ
func (s *CombatSession) SubmitAttack(ctx context.Context, attackerID, targetID string, roll engine.RollResult, weapon engine.Weapon) (Result, error) {
	return s.run(ctx, "submit-attack", publishPending, func(c *engine.Combat, res *Result) (*mirror, error) {
		attack, err := c.Submit(attackerID, targetID, roll, weapon)
		if err != nil {
			return nil, err
		}
		res.Attack = &attack
		return nil, nil
	})
}

// RollAttack はサーバー側でダイスを振って攻撃を提出する
func (s *CombatSession) RollAttack(ctx context.Context, attackerID, targetID, attackName string) (Result, error) {
	return s.run(ctx, "roll-attack", publishPending, func(c *engine.Combat, res *Result) (*mirror, error) {
		attack, err := c.RollAttack(s.src, s.opts.Roll, attackerID, targetID, attackName)
		if err != nil {
			return nil, err
		}
		res.Attack = &attack
		return nil, nil
	})
}

func (s *CombatSession) ValidateAttack(ctx context.Context, index int, override *int) (Result, error) {
	return s.run(ctx, "validate-attack", publishCombat|publishPending, func(c *engine.Combat, res *Result) (*mirror, error) {
		out, err := c.Validate(index, override)
		if err != nil {
			return nil, err
		}
		res.Attack = &out.Attack
		res.Combatant = &out.Target
		res.Damage = &out.Damage
		return &mirror{characterID: out.Target.CharacterID, fields: out.Mirror}, nil
	})
}

func (s *CombatSession) RejectAttack(ctx context.Context, index int) (Result, error) {
	return s.run(ctx, "reject-attack", publishPending, func(c *engine.Combat, res *Result) (*mirror, error) {
		attack, err := c.Reject(index)
		if err != nil {
			return nil, err
		}
		res.Attack = &attack
		return nil, nil
	})
}

func (s *CombatSession) Snapshot() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combat.Snapshot()
}

// Combatant は戦闘員1人のコピーを返す
func (s *CombatSession) Combatant(id string) (engine.Combatant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combat.Get(id)
}

func (s *CombatSession) PendingAttacks() []engine.PendingAttack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combat.PendingAttacks()
}

// InCombat はキャラクターごとに戦闘参加中かどうかを返す
func (s *CombatSession) InCombat(characterIDs []uint) map[uint]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]bool, len(characterIDs))
	for _, id := range characterIDs {
		out[id] = s.combat.HasCharacter(id)
	}
	return out
}

// closeIfIdle は cutoff 以降操作がなく戦闘中でもなければ閉じる
func (s *CombatSession) closeIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lastActivity.After(cutoff) || s.combat.Active() {
		return false
	}
	s.closed = true
	return true
}

func (s *CombatSession) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// CombatantFromCharacter はキャラクターシートを戦闘員の入力に変換する
func CombatantFromCharacter(ch *models.Character) engine.CombatantData {
	data := engine.CombatantData{
		Type:            engine.CombatantPlayer,
		Name:            ch.Name,
		CharacterID:     ch.ID,
		Blessure:        ch.Blessure,
		BlessureMax:     ch.BlessureMax,
		Fatigue:         ch.Fatigue,
		Armure:          ch.Armure,
		Seuil:           ch.Seuil,
		ActionsMax:      ch.ActionsMax,
		Characteristics: ch.Characteristics,
	}
	if ch.WeaponName != "" {
		data.Weapon = &engine.Weapon{
			Name:           ch.WeaponName,
			Damage:         ch.WeaponDamage,
			Characteristic: ch.WeaponCharacteristic,
		}
	}
	return data
}
