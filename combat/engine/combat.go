package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// EndPolicy は戦闘終了時にロスターを残すかどうか
type EndPolicy string

const (
	EndRetainRoster EndPolicy = "retain"
	EndClearRoster  EndPolicy = "clear"
)

// ParseEndPolicy は設定値を解釈する。空文字は retain
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch EndPolicy(s) {
	case "", EndRetainRoster:
		return EndRetainRoster, nil
	case EndClearRoster:
		return EndClearRoster, nil
	default:
		return "", fmt.Errorf("%w: unknown end policy %q", ErrInvalidInput, s)
	}
}

// Snapshot は配信用の戦闘状態の完全なコピー
type Snapshot struct {
	Version          uint64      `json:"version"`
	Active           bool        `json:"active"`
	Round            int         `json:"round"`
	CurrentTurnIndex int         `json:"currentTurnIndex"`
	Combatants       []Combatant `json:"combatants"`
}

// Combat holds the authoritative combat state and the pending attack queue of one session.
// It is not safe for concurrent use; callers serialize every command.
type Combat struct {
	active           bool
	round            int
	currentTurnIndex int
	combatants       []*Combatant
	pending          []PendingAttack

	version uint64
}

func New() *Combat {
	return &Combat{}
}

// Start はイニシアチブ最大の戦闘員から戦闘を開始する。同値はリスト順
func (c *Combat) Start() error {
	if len(c.combatants) == 0 {
		return fmt.Errorf("%w: cannot start combat without combatants", ErrInvalidInput)
	}
	if c.active {
		return fmt.Errorf("%w: combat is already active in round %d", ErrInvalidInput, c.round)
	}

	best := 0
	for i, cb := range c.combatants {
		if cb.Initiative > c.combatants[best].Initiative {
			best = i
		}
	}
	for _, cb := range c.combatants {
		cb.ActionsRemaining = cb.ActionsMax
		cb.JoinsRound = 0
		cb.HasJustExpired = false
		cb.ExpiredEffects = nil
	}

	c.active = true
	c.round = 1
	c.currentTurnIndex = best
	c.version++
	return nil
}

// NextTurn advances to the next eligible combatant. Wrapping past the last combatant starts
// a new round. It returns the combatants flagged with HasJustExpired by the round change.
func (c *Combat) NextTurn() ([]Combatant, error) {
	if !c.active {
		return nil, fmt.Errorf("%w: combat is not active", ErrInvalidInput)
	}
	if len(c.combatants) == 0 {
		return nil, fmt.Errorf("%w: no combatants", ErrInvalidInput)
	}

	c.clearExpiryFlags()
	c.currentTurnIndex++
	var flagged []Combatant
	if c.currentTurnIndex >= len(c.combatants) {
		c.currentTurnIndex = 0
		flagged = c.startRound()
	}
	flagged = append(flagged, c.skipDeferred()...)
	c.version++
	return flagged, nil
}

// End は戦闘を終了する。保留中の攻撃は破棄する
func (c *Combat) End(policy EndPolicy) {
	c.active = false
	c.round = 0
	c.currentTurnIndex = 0
	c.pending = nil
	if policy == EndClearRoster {
		c.combatants = nil
	} else {
		for _, cb := range c.combatants {
			cb.JoinsRound = 0
			cb.HasJustExpired = false
			cb.ExpiredEffects = nil
		}
	}
	c.version++
}

// Add は新しいIDで戦闘員を末尾に追加する。戦闘中なら次のラウンドから参加
func (c *Combat) Add(data CombatantData) (Combatant, error) {
	if data.ActionsMax == 0 {
		data.ActionsMax = 1
	}
	if err := data.validate(); err != nil {
		return Combatant{}, err
	}
	if data.CharacterID != 0 {
		if _, existing := c.findByCharacter(data.CharacterID); existing != nil {
			return Combatant{}, fmt.Errorf("%w: character %d is already in combat as %s", ErrInvalidInput, data.CharacterID, existing.ID)
		}
	}

	cb := &Combatant{
		ID:               uuid.NewString(),
		Type:             data.Type,
		Name:             data.Name,
		CharacterID:      data.CharacterID,
		Blessure:         data.Blessure,
		BlessureMax:      data.BlessureMax,
		Fatigue:          data.Fatigue,
		Armure:           data.Armure,
		Seuil:            data.Seuil,
		ActionsMax:       data.ActionsMax,
		ActionsRemaining: data.ActionsMax,
		Initiative:       data.Initiative,
		InitiativeRoll:   data.InitiativeRoll,
		Effects:          append([]Effect(nil), data.Effects...),
		Profile:          data.profile(),
	}
	if c.active {
		cb.JoinsRound = c.round + 1
	}
	c.combatants = append(c.combatants, cb)
	c.version++
	return cb.Clone(), nil
}

// Update は部分更新を適用し、キャラクターストアへ反映すべきフィールドを返す
func (c *Combat) Update(id string, patch CombatantPatch) (Combatant, map[string]int, error) {
	_, cb := c.find(id)
	if cb == nil {
		return Combatant{}, nil, fmt.Errorf("%w: combatant %s", ErrNotFound, id)
	}
	if err := patch.validate(); err != nil {
		return Combatant{}, nil, err
	}
	mirror := patch.apply(cb)
	c.version++
	return cb.Clone(), mirror, nil
}

// Remove は戦闘員を取り除き、手番インデックスを不変条件に合わせて調整する
func (c *Combat) Remove(id string) (Combatant, error) {
	idx, cb := c.find(id)
	if cb == nil {
		return Combatant{}, fmt.Errorf("%w: combatant %s", ErrNotFound, id)
	}
	removed := cb.Clone()
	c.combatants = append(c.combatants[:idx], c.combatants[idx+1:]...)

	switch {
	case len(c.combatants) == 0:
		c.currentTurnIndex = 0
	case idx < c.currentTurnIndex:
		c.currentTurnIndex--
	case c.currentTurnIndex >= len(c.combatants):
		// 最後尾の手番が抜けた場合は一周したとみなす
		c.currentTurnIndex = 0
		if c.active {
			c.clearExpiryFlags()
			c.startRound()
		}
	}
	// 詰めた位置に途中参加の戦闘員が来たら次の参加者まで進める
	if c.active && len(c.combatants) > 0 {
		c.skipDeferred()
	}
	c.version++
	return removed, nil
}

// Reorder は手番順を置き換える。手番中の戦闘員はIDで追跡する
func (c *Combat) Reorder(ids []string) error {
	if len(ids) != len(c.combatants) {
		return fmt.Errorf("%w: order has %d ids, roster has %d", ErrInvalidInput, len(ids), len(c.combatants))
	}
	var activeID string
	if len(c.combatants) > 0 {
		activeID = c.combatants[c.currentTurnIndex].ID
	}

	seen := make(map[string]bool, len(ids))
	next := make([]*Combatant, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: duplicate combatant %s in order", ErrInvalidInput, id)
		}
		seen[id] = true
		_, cb := c.find(id)
		if cb == nil {
			return fmt.Errorf("%w: unknown combatant %s in order", ErrInvalidInput, id)
		}
		next = append(next, cb)
	}

	c.combatants = next
	for i, cb := range c.combatants {
		if cb.ID == activeID {
			c.currentTurnIndex = i
			break
		}
	}
	c.version++
	return nil
}

// Get は戦闘員のコピーを返す
func (c *Combat) Get(id string) (Combatant, bool) {
	_, cb := c.find(id)
	if cb == nil {
		return Combatant{}, false
	}
	return cb.Clone(), true
}

// HasCharacter はキャラクターが既に戦闘に参加しているか
func (c *Combat) HasCharacter(characterID uint) bool {
	_, cb := c.findByCharacter(characterID)
	return cb != nil
}

func (c *Combat) Active() bool { return c.active }

func (c *Combat) Len() int { return len(c.combatants) }

func (c *Combat) Snapshot() Snapshot {
	out := Snapshot{
		Version:          c.version,
		Active:           c.active,
		Round:            c.round,
		CurrentTurnIndex: c.currentTurnIndex,
		Combatants:       make([]Combatant, 0, len(c.combatants)),
	}
	for _, cb := range c.combatants {
		out.Combatants = append(out.Combatants, cb.Clone())
	}
	return out
}

// startRound はラウンドを進め、行動回数と効果時間を更新する
func (c *Combat) startRound() []Combatant {
	c.round++
	var flagged []Combatant
	for _, cb := range c.combatants {
		if cb.JoinsRound <= c.round {
			cb.JoinsRound = 0
		}
		expired := false
		if cb.ActionsRemaining != cb.ActionsMax {
			cb.ActionsRemaining = cb.ActionsMax
			expired = true
		}
		kept := cb.Effects[:0]
		for _, e := range cb.Effects {
			e.RemainingRounds--
			if e.RemainingRounds <= 0 {
				cb.ExpiredEffects = append(cb.ExpiredEffects, e.Name)
				expired = true
				continue
			}
			kept = append(kept, e)
		}
		cb.Effects = kept
		if expired {
			cb.HasJustExpired = true
			flagged = append(flagged, cb.Clone())
		}
	}
	return flagged
}

// skipDeferred は今のラウンドに参加できる戦闘員まで手番を進める。
// ラウンドを跨げば全員が参加できるので len+1 回で必ず止まる
func (c *Combat) skipDeferred() []Combatant {
	var flagged []Combatant
	for step := 0; step <= len(c.combatants); step++ {
		if c.combatants[c.currentTurnIndex].JoinsRound <= c.round {
			break
		}
		c.currentTurnIndex++
		if c.currentTurnIndex >= len(c.combatants) {
			c.currentTurnIndex = 0
			c.clearExpiryFlags()
			flagged = c.startRound()
		}
	}
	return flagged
}

func (c *Combat) clearExpiryFlags() {
	for _, cb := range c.combatants {
		cb.HasJustExpired = false
		cb.ExpiredEffects = nil
	}
}

func (c *Combat) find(id string) (int, *Combatant) {
	for i, cb := range c.combatants {
		if cb.ID == id {
			return i, cb
		}
	}
	return -1, nil
}

func (c *Combat) findByCharacter(characterID uint) (int, *Combatant) {
	if characterID == 0 {
		return -1, nil
	}
	for i, cb := range c.combatants {
		if cb.CharacterID == characterID {
			return i, cb
		}
	}
	return -1, nil
}
