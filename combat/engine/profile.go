package engine

import (
	"fmt"
	"strings"
)

// Weapon は攻撃に使う武器。Characteristic はプレイヤーのダイスプールを決める能力値名
type Weapon struct {
	Name           string `json:"name"`
	Damage         int    `json:"damage"`
	Characteristic string `json:"characteristic,omitempty"`
}

// AttackProfile はNPCの名前付き攻撃
type AttackProfile struct {
	Name   string `json:"name" yaml:"name"`
	Damage int    `json:"damage" yaml:"damage"`
	Pool   int    `json:"pool" yaml:"pool"`
}

// ResolvedAttack は攻撃者プロファイルから解決した攻撃
type ResolvedAttack struct {
	Weapon Weapon `json:"weapon"`
	Pool   int    `json:"pool"`
}

// AttackerProfile is either a PlayerProfile or an NpcProfile.
type AttackerProfile interface {
	Kind() CombatantType
	resolve(attackName string) (ResolvedAttack, error)
	clone() AttackerProfile
}

// PlayerProfile はプレイヤーの攻撃。装備中の武器と能力値から決まる
type PlayerProfile struct {
	Weapon          Weapon         `json:"weapon"`
	Characteristics map[string]int `json:"characteristics,omitempty"`
}

// NpcProfile はNPCの攻撃一覧
type NpcProfile struct {
	Attacks []AttackProfile `json:"attacks"`
}

func (PlayerProfile) Kind() CombatantType { return CombatantPlayer }

func (NpcProfile) Kind() CombatantType { return CombatantNPC }

// プレイヤーは装備武器でしか攻撃できないので attackName は武器名との照合のみ
func (p PlayerProfile) resolve(attackName string) (ResolvedAttack, error) {
	if p.Weapon.Name == "" {
		return ResolvedAttack{}, fmt.Errorf("%w: no weapon equipped", ErrInvalidInput)
	}
	if attackName != "" && !strings.EqualFold(attackName, p.Weapon.Name) {
		return ResolvedAttack{}, fmt.Errorf("%w: weapon %q is not equipped", ErrNotFound, attackName)
	}
	pool := p.Characteristics[p.Weapon.Characteristic]
	return ResolvedAttack{Weapon: p.Weapon, Pool: pool}, nil
}

func (p NpcProfile) resolve(attackName string) (ResolvedAttack, error) {
	if len(p.Attacks) == 0 {
		return ResolvedAttack{}, fmt.Errorf("%w: npc has no attacks", ErrInvalidInput)
	}
	if attackName == "" {
		a := p.Attacks[0]
		return ResolvedAttack{Weapon: Weapon{Name: a.Name, Damage: a.Damage}, Pool: a.Pool}, nil
	}
	for _, a := range p.Attacks {
		if strings.EqualFold(a.Name, attackName) {
			return ResolvedAttack{Weapon: Weapon{Name: a.Name, Damage: a.Damage}, Pool: a.Pool}, nil
		}
	}
	return ResolvedAttack{}, fmt.Errorf("%w: attack %q", ErrNotFound, attackName)
}

func (p PlayerProfile) clone() AttackerProfile {
	c := PlayerProfile{Weapon: p.Weapon}
	if p.Characteristics != nil {
		c.Characteristics = make(map[string]int, len(p.Characteristics))
		for k, v := range p.Characteristics {
			c.Characteristics[k] = v
		}
	}
	return c
}

func (p NpcProfile) clone() AttackerProfile {
	return NpcProfile{Attacks: append([]AttackProfile(nil), p.Attacks...)}
}

// ResolveAttack is the single entry point the attack workflow uses for both player and
// NPC attackers. An empty attackName picks the equipped weapon or the first NPC attack.
func ResolveAttack(profile AttackerProfile, attackName string) (ResolvedAttack, error) {
	if profile == nil {
		return ResolvedAttack{}, fmt.Errorf("%w: combatant has no attack profile", ErrInvalidInput)
	}
	return profile.resolve(attackName)
}
