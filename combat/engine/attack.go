package engine

import (
	"fmt"

	"github.com/google/uuid"

	"rpgserver/combat/dice"
)

const (
	AttackPending   = "pending"
	AttackValidated = "validated"
	AttackRejected  = "rejected"
)

// RollResult はクライアントまたはサーバーが振った攻撃ロール
type RollResult struct {
	Rolls               []int `json:"rolls"`
	Threshold           int   `json:"threshold"`
	ExplosionThresholds []int `json:"explosionThresholds"`
	Successes           int   `json:"successes"`
}

// PendingAttack はGMの承認待ちの攻撃
type PendingAttack struct {
	ID              string     `json:"id"`
	AttackerID      string     `json:"attackerId"`
	AttackerName    string     `json:"attackerName"`
	TargetID        string     `json:"targetId"`
	TargetName      string     `json:"targetName"`
	RollResult      RollResult `json:"rollResult"`
	Weapon          Weapon     `json:"weapon"`
	MarginOfSuccess int        `json:"marginOfReussite"`
	SuggestedDamage int        `json:"suggestedDamage"`
	Status          string     `json:"status"`
}

// AttackOutcome は承認された攻撃の適用結果
type AttackOutcome struct {
	Attack PendingAttack  `json:"attack"`
	Damage int            `json:"damage"`
	Target Combatant      `json:"target"`
	Mirror map[string]int `json:"-"`
}

// RollConfig はサーバー側で振るときの閾値
type RollConfig struct {
	SuccessThreshold   int
	ExplosionThreshold int
}

// MarginOfSuccess は成功数から対象の閾値を引いたもの。0未満にはならない
func MarginOfSuccess(successes, seuil int) int {
	return max(0, successes-seuil)
}

// SuggestedDamage は武器ダメージ + MR - 防具。0未満にはならない
func SuggestedDamage(weaponDamage, mr, armure int) int {
	return max(0, weaponDamage+mr-armure)
}

// Submit queues an attack proposal for GM review.
func (c *Combat) Submit(attackerID, targetID string, roll RollResult, weapon Weapon) (PendingAttack, error) {
	if roll.Successes < 0 {
		return PendingAttack{}, fmt.Errorf("%w: successes %d is negative", ErrInvalidInput, roll.Successes)
	}
	_, attacker := c.find(attackerID)
	if attacker == nil {
		return PendingAttack{}, fmt.Errorf("%w: attacker %s", ErrNotFound, attackerID)
	}
	_, target := c.find(targetID)
	if target == nil {
		return PendingAttack{}, fmt.Errorf("%w: target %s", ErrNotFound, targetID)
	}

	mr := MarginOfSuccess(roll.Successes, target.Seuil)
	attack := PendingAttack{
		ID:              uuid.NewString(),
		AttackerID:      attacker.ID,
		AttackerName:    attacker.Name,
		TargetID:        target.ID,
		TargetName:      target.Name,
		RollResult:      cloneRoll(roll),
		Weapon:          weapon,
		MarginOfSuccess: mr,
		SuggestedDamage: SuggestedDamage(weapon.Damage, mr, target.Armure),
		Status:          AttackPending,
	}
	c.pending = append(c.pending, attack)
	c.version++
	return attack, nil
}

// RollAttack は攻撃者のプロファイルからダイスを振り、結果をそのまま提出する
func (c *Combat) RollAttack(src dice.Source, cfg RollConfig, attackerID, targetID, attackName string) (PendingAttack, error) {
	_, attacker := c.find(attackerID)
	if attacker == nil {
		return PendingAttack{}, fmt.Errorf("%w: attacker %s", ErrNotFound, attackerID)
	}
	if _, target := c.find(targetID); target == nil {
		return PendingAttack{}, fmt.Errorf("%w: target %s", ErrNotFound, targetID)
	}
	resolved, err := ResolveAttack(attacker.Profile, attackName)
	if err != nil {
		return PendingAttack{}, err
	}
	result, err := dice.RollPool(src, resolved.Pool, cfg.SuccessThreshold, cfg.ExplosionThreshold)
	if err != nil {
		return PendingAttack{}, err
	}
	roll := RollResult{
		Rolls:               result.Rolls,
		Threshold:           cfg.SuccessThreshold,
		ExplosionThresholds: []int{cfg.ExplosionThreshold},
		Successes:           result.TotalSuccesses,
	}
	return c.Submit(attackerID, targetID, roll, resolved.Weapon)
}

// Validate applies the attack at index to its target. A non-nil override replaces the
// suggested damage and is floored at 0. The queue is left untouched when the index or the target is unknown.
func (c *Combat) Validate(index int, override *int) (AttackOutcome, error) {
	if index < 0 || index >= len(c.pending) {
		return AttackOutcome{}, fmt.Errorf("%w: %d (queue has %d)", ErrOutOfRangeIndex, index, len(c.pending))
	}
	attack := c.pending[index]
	_, target := c.find(attack.TargetID)
	if target == nil {
		return AttackOutcome{}, fmt.Errorf("%w: target %s", ErrNotFound, attack.TargetID)
	}

	damage := attack.SuggestedDamage
	if override != nil {
		// 負の値で回復させない
		damage = max(0, *override)
	}
	target.ApplyDamage(damage)
	c.pending = append(c.pending[:index], c.pending[index+1:]...)
	c.version++

	attack.Status = AttackValidated
	return AttackOutcome{
		Attack: attack,
		Damage: damage,
		Target: target.Clone(),
		Mirror: map[string]int{FieldBlessure: target.Blessure},
	}, nil
}

// Reject は保留中の攻撃を破棄する
func (c *Combat) Reject(index int) (PendingAttack, error) {
	if index < 0 || index >= len(c.pending) {
		return PendingAttack{}, fmt.Errorf("%w: %d (queue has %d)", ErrOutOfRangeIndex, index, len(c.pending))
	}
	attack := c.pending[index]
	c.pending = append(c.pending[:index], c.pending[index+1:]...)
	c.version++
	attack.Status = AttackRejected
	return attack, nil
}

// PendingAttacks は保留キューのコピーを返す
func (c *Combat) PendingAttacks() []PendingAttack {
	out := make([]PendingAttack, 0, len(c.pending))
	for _, a := range c.pending {
		a.RollResult = cloneRoll(a.RollResult)
		out = append(out, a)
	}
	return out
}

func cloneRoll(r RollResult) RollResult {
	r.Rolls = append([]int(nil), r.Rolls...)
	r.ExplosionThresholds = append([]int(nil), r.ExplosionThresholds...)
	return r
}
