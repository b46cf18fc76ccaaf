package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrCharacterNotFound = errors.New("character not found")

// Character はプレイヤーのキャラクターシート。戦闘エンジンは blessure/fatigue/armure/seuil のみ書き戻す
type Character struct {
	gorm.Model
	UserID               uint           `gorm:"index" json:"userId"`
	SessionID            string         `gorm:"index" json:"sessionId"`
	Name                 string         `gorm:"not null" json:"name"`
	Blessure             int            `gorm:"not null;default:0" json:"blessure"`
	BlessureMax          int            `gorm:"not null;default:0" json:"blessureMax"`
	Fatigue              int            `gorm:"not null;default:0" json:"fatigue"`
	Armure               int            `gorm:"not null;default:0" json:"armure"`
	Seuil                int            `gorm:"not null;default:1" json:"seuil"`
	ActionsMax           int            `gorm:"not null;default:1" json:"actionsMax"`
	WeaponName           string         `json:"weaponName"`
	WeaponDamage         int            `json:"weaponDamage"`
	WeaponCharacteristic string         `json:"weaponCharacteristic"`
	Characteristics      map[string]int `gorm:"serializer:json" json:"characteristics"`
}

// CharacterUpdateRequest は PUT /characters/:id の入力。nil のフィールドは変更しない
type CharacterUpdateRequest struct {
	Name                 *string        `json:"name,omitempty"`
	Blessure             *int           `json:"blessure,omitempty"`
	BlessureMax          *int           `json:"blessureMax,omitempty"`
	Fatigue              *int           `json:"fatigue,omitempty"`
	Armure               *int           `json:"armure,omitempty"`
	Seuil                *int           `json:"seuil,omitempty"`
	WeaponName           *string        `json:"weaponName,omitempty"`
	WeaponDamage         *int           `json:"weaponDamage,omitempty"`
	WeaponCharacteristic *string        `json:"weaponCharacteristic,omitempty"`
	Characteristics      map[string]int `json:"characteristics,omitempty"`
}

// Columns はgormの Updates に渡すカラム名の map を返す
func (r CharacterUpdateRequest) Columns() map[string]any {
	cols := map[string]any{}
	if r.Name != nil {
		cols["name"] = *r.Name
	}
	if r.Blessure != nil {
		cols["blessure"] = *r.Blessure
	}
	if r.BlessureMax != nil {
		cols["blessure_max"] = *r.BlessureMax
	}
	if r.Fatigue != nil {
		cols["fatigue"] = *r.Fatigue
	}
	if r.Armure != nil {
		cols["armure"] = *r.Armure
	}
	if r.Seuil != nil {
		cols["seuil"] = *r.Seuil
	}
	if r.WeaponName != nil {
		cols["weapon_name"] = *r.WeaponName
	}
	if r.WeaponDamage != nil {
		cols["weapon_damage"] = *r.WeaponDamage
	}
	if r.WeaponCharacteristic != nil {
		cols["weapon_characteristic"] = *r.WeaponCharacteristic
	}
	return cols
}

// Validate はシートの値域を検査する
func (r CharacterUpdateRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return errors.New("name must not be empty")
	}
	if r.Fatigue != nil && (*r.Fatigue < 0 || *r.Fatigue > 9) {
		return errors.New("fatigue must be between 0 and 9")
	}
	if r.Seuil != nil && *r.Seuil < 1 {
		return errors.New("seuil must be at least 1")
	}
	for name, v := range map[string]*int{"blessure": r.Blessure, "blessureMax": r.BlessureMax, "armure": r.Armure, "weaponDamage": r.WeaponDamage} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if r.Blessure != nil && r.BlessureMax != nil && *r.Blessure > *r.BlessureMax {
		return errors.New("blessure exceeds blessureMax")
	}
	return nil
}
