package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

type CombatantType string

const (
	CombatantPlayer CombatantType = "player"
	CombatantNPC    CombatantType = "npc"
)

// 疲労の段階は 0..9
const (
	FatigueMin = 0
	FatigueMax = 9
)

// キャラクターストアへ反映するフィールド（DBのカラム名）
const (
	FieldBlessure = "blessure"
	FieldFatigue  = "fatigue"
	FieldArmure   = "armure"
	FieldSeuil    = "seuil"
)

// Effect はラウンド経過で切れる効果
type Effect struct {
	Name            string `json:"name"`
	RemainingRounds int    `json:"remainingRounds"`
}

// Combatant は戦闘ロスターの1エントリ
type Combatant struct {
	ID               string          `json:"id"`
	Type             CombatantType   `json:"type"`
	Name             string          `json:"name"`
	CharacterID      uint            `json:"characterId,omitempty"`
	Blessure         int             `json:"blessure"`
	BlessureMax      int             `json:"blessureMax"`
	Fatigue          int             `json:"fatigue"`
	Armure           int             `json:"armure"`
	Seuil            int             `json:"seuil"`
	ActionsMax       int             `json:"actionsMax"`
	ActionsRemaining int             `json:"actionsRemaining"`
	Initiative       int             `json:"initiative"`
	InitiativeRoll   string          `json:"initiativeRoll,omitempty"`
	Effects          []Effect        `json:"effects,omitempty"`
	Profile          AttackerProfile `json:"profile,omitempty"`
	HasJustExpired   bool            `json:"hasJustExpired"`
	ExpiredEffects   []string        `json:"expiredEffects,omitempty"`
	// 戦闘中に追加された場合、このラウンドから手番に参加する
	JoinsRound int `json:"joinsRound,omitempty"`
}

// CombatantData は戦闘員追加時の入力
type CombatantData struct {
	Type            CombatantType   `json:"type"`
	Name            string          `json:"name"`
	CharacterID     uint            `json:"characterId,omitempty"`
	Blessure        int             `json:"blessure"`
	BlessureMax     int             `json:"blessureMax"`
	Fatigue         int             `json:"fatigue"`
	Armure          int             `json:"armure"`
	Seuil           int             `json:"seuil"`
	ActionsMax      int             `json:"actionsMax"`
	Initiative      int             `json:"initiative"`
	InitiativeRoll  string          `json:"initiativeRoll,omitempty"`
	Weapon          *Weapon         `json:"weapon,omitempty"`
	Characteristics map[string]int  `json:"characteristics,omitempty"`
	Attacks         []AttackProfile `json:"attacks,omitempty"`
	Effects         []Effect        `json:"effects,omitempty"`
}

// CombatantPatch は部分更新。nil のフィールドは変更しない
type CombatantPatch struct {
	Name             *string   `json:"name,omitempty"`
	Blessure         *int      `json:"blessure,omitempty"`
	BlessureMax      *int      `json:"blessureMax,omitempty"`
	Fatigue          *int      `json:"fatigue,omitempty"`
	Armure           *int      `json:"armure,omitempty"`
	Seuil            *int      `json:"seuil,omitempty"`
	ActionsMax       *int      `json:"actionsMax,omitempty"`
	ActionsRemaining *int      `json:"actionsRemaining,omitempty"`
	Initiative       *int      `json:"initiative,omitempty"`
	InitiativeRoll   *string   `json:"initiativeRoll,omitempty"`
	Effects          *[]Effect `json:"effects,omitempty"`
}

func (d CombatantData) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: combatant name is empty", ErrInvalidInput)
	}
	switch d.Type {
	case CombatantPlayer, CombatantNPC:
	default:
		return fmt.Errorf("%w: unknown combatant type %q", ErrInvalidInput, d.Type)
	}
	if d.BlessureMax < 0 {
		return fmt.Errorf("%w: blessureMax %d is negative", ErrInvalidInput, d.BlessureMax)
	}
	if d.Blessure < 0 || d.Blessure > d.BlessureMax {
		return fmt.Errorf("%w: blessure %d out of [0,%d]", ErrInvalidInput, d.Blessure, d.BlessureMax)
	}
	if err := validateFatigue(d.Fatigue); err != nil {
		return err
	}
	if d.Armure < 0 {
		return fmt.Errorf("%w: armure %d is negative", ErrInvalidInput, d.Armure)
	}
	if d.Seuil < 1 {
		return fmt.Errorf("%w: seuil %d must be at least 1", ErrInvalidInput, d.Seuil)
	}
	if d.ActionsMax < 0 {
		return fmt.Errorf("%w: actionsMax %d is negative", ErrInvalidInput, d.ActionsMax)
	}
	return validateEffects(d.Effects)
}

func (d CombatantData) profile() AttackerProfile {
	if d.Type == CombatantPlayer {
		p := PlayerProfile{Characteristics: d.Characteristics}
		if d.Weapon != nil {
			p.Weapon = *d.Weapon
		}
		return p.clone()
	}
	return NpcProfile{Attacks: d.Attacks}.clone()
}

func (p CombatantPatch) validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: combatant name is empty", ErrInvalidInput)
	}
	if p.BlessureMax != nil && *p.BlessureMax < 0 {
		return fmt.Errorf("%w: blessureMax %d is negative", ErrInvalidInput, *p.BlessureMax)
	}
	if p.Fatigue != nil {
		if err := validateFatigue(*p.Fatigue); err != nil {
			return err
		}
	}
	if p.Armure != nil && *p.Armure < 0 {
		return fmt.Errorf("%w: armure %d is negative", ErrInvalidInput, *p.Armure)
	}
	if p.Seuil != nil && *p.Seuil < 1 {
		return fmt.Errorf("%w: seuil %d must be at least 1", ErrInvalidInput, *p.Seuil)
	}
	if p.ActionsMax != nil && *p.ActionsMax < 0 {
		return fmt.Errorf("%w: actionsMax %d is negative", ErrInvalidInput, *p.ActionsMax)
	}
	if p.ActionsRemaining != nil && *p.ActionsRemaining < 0 {
		return fmt.Errorf("%w: actionsRemaining %d is negative", ErrInvalidInput, *p.ActionsRemaining)
	}
	if p.Effects != nil {
		return validateEffects(*p.Effects)
	}
	return nil
}

// apply はパッチを適用し、キャラクターストアへ反映すべきフィールドを返す
func (p CombatantPatch) apply(c *Combatant) map[string]int {
	mirror := map[string]int{}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.BlessureMax != nil {
		c.BlessureMax = *p.BlessureMax
		// 上限を下げた場合は現在値も合わせる
		if c.Blessure > c.BlessureMax {
			c.Blessure = c.BlessureMax
			mirror[FieldBlessure] = c.Blessure
		}
	}
	if p.Blessure != nil {
		c.Blessure = clamp(*p.Blessure, 0, c.BlessureMax)
		mirror[FieldBlessure] = c.Blessure
	}
	if p.Fatigue != nil {
		c.Fatigue = *p.Fatigue
		mirror[FieldFatigue] = c.Fatigue
	}
	if p.Armure != nil {
		c.Armure = *p.Armure
		mirror[FieldArmure] = c.Armure
	}
	if p.Seuil != nil {
		c.Seuil = *p.Seuil
		mirror[FieldSeuil] = c.Seuil
	}
	if p.ActionsMax != nil {
		c.ActionsMax = *p.ActionsMax
	}
	if p.ActionsRemaining != nil {
		c.ActionsRemaining = *p.ActionsRemaining
	}
	if c.ActionsRemaining > c.ActionsMax {
		c.ActionsRemaining = c.ActionsMax
	}
	if p.Initiative != nil {
		c.Initiative = *p.Initiative
	}
	if p.InitiativeRoll != nil {
		c.InitiativeRoll = *p.InitiativeRoll
	}
	if p.Effects != nil {
		c.Effects = append([]Effect(nil), (*p.Effects)...)
	}
	return mirror
}

// Clone はスナップショット用のディープコピー
func (c *Combatant) Clone() Combatant {
	out := *c
	out.Effects = append([]Effect(nil), c.Effects...)
	out.ExpiredEffects = append([]string(nil), c.ExpiredEffects...)
	if c.Profile != nil {
		out.Profile = c.Profile.clone()
	}
	return out
}

// ApplyDamage はブレッシュールに加算し [0, BlessureMax] に収める
func (c *Combatant) ApplyDamage(amount int) {
	c.Blessure = clamp(c.Blessure+amount, 0, c.BlessureMax)
}

func validateFatigue(f int) error {
	if f < FatigueMin || f > FatigueMax {
		return fmt.Errorf("%w: fatigue %d out of [%d,%d]", ErrInvalidInput, f, FatigueMin, FatigueMax)
	}
	return nil
}

func validateEffects(effects []Effect) error {
	for _, e := range effects {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%w: effect name is empty", ErrInvalidInput)
		}
		if e.RemainingRounds < 1 {
			return fmt.Errorf("%w: effect %q has %d remaining rounds", ErrInvalidInput, e.Name, e.RemainingRounds)
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UnmarshalJSON は type に応じて profile を具体型に復元する
func (c *Combatant) UnmarshalJSON(data []byte) error {
	type plain Combatant
	var raw struct {
		plain
		Profile json.RawMessage `json:"profile,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Combatant(raw.plain)
	c.Profile = nil
	if len(raw.Profile) == 0 || string(raw.Profile) == "null" {
		return nil
	}
	switch c.Type {
	case CombatantPlayer:
		var p PlayerProfile
		if err := json.Unmarshal(raw.Profile, &p); err != nil {
			return err
		}
		c.Profile = p
	case CombatantNPC:
		var p NpcProfile
		if err := json.Unmarshal(raw.Profile, &p); err != nil {
			return err
		}
		c.Profile = p
	default:
		return fmt.Errorf("%w: unknown combatant type %q", ErrInvalidInput, c.Type)
	}
	return nil
}
