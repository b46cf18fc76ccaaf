package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleGM     = "gm"
	RolePlayer = "player"
)

// MyClaims はJWTクレームの構造体定義です。
// プレイヤーは CharacterID を持ち、GMは持たない
type MyClaims struct {
	UserID      uint   `json:"userid"`
	CharacterID uint   `json:"characterId,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

func (c *MyClaims) IsGM() bool { return c.Role == RoleGM }
