package engine

import (
	"errors"

	"rpgserver/combat/dice"
)

var (
	// ErrInvalidInput は入力検証エラー。状態は変更されない
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound は戦闘員・攻撃者・対象が見つからない
	ErrNotFound = errors.New("not found")
	// ErrOutOfRangeIndex は保留中攻撃のインデックスがキューの範囲外
	ErrOutOfRangeIndex = errors.New("pending attack index out of range")
)

// IsInvalidInput はダイスエンジン由来の入力エラーも含めて判定する
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, dice.ErrInvalidInput)
}
