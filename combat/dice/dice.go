package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// ダイスは常にd10
const Sides = 10

var ErrInvalidInput = errors.New("dice: invalid input")

// Source は乱数源。*rand.Rand がそのまま満たす
type Source interface {
	Intn(n int) int
}

// Result はダイスプールの判定結果
type Result struct {
	Rolls          []int `json:"rolls"`
	BaseSuccesses  int   `json:"baseSuccesses"`  // 最初のpoolSize個のみの成功数
	TotalSuccesses int   `json:"totalSuccesses"` // 爆発分を含む成功数
}

// RollPool rolls poolSize d10 and counts the values at or above successThreshold.
// Any value at or above explosionThreshold adds one more die to the sequence, and the
// added die may explode again.
func RollPool(src Source, poolSize, successThreshold, explosionThreshold int) (Result, error) {
	// 閾値1以下は無限に爆発するので弾く
	if explosionThreshold <= 1 {
		return Result{}, fmt.Errorf("%w: explosion threshold %d must be greater than 1", ErrInvalidInput, explosionThreshold)
	}
	if poolSize < 0 {
		return Result{}, fmt.Errorf("%w: pool size %d is negative", ErrInvalidInput, poolSize)
	}
	if successThreshold < 1 || successThreshold > Sides {
		return Result{}, fmt.Errorf("%w: success threshold %d out of [1,%d]", ErrInvalidInput, successThreshold, Sides)
	}
	if src == nil {
		return Result{}, fmt.Errorf("%w: nil random source", ErrInvalidInput)
	}

	rolls := make([]int, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		rolls = append(rolls, rollDie(src))
	}
	// 爆発したダイスの追加分は末尾に積む。追加分もまた爆発しうる
	for i := 0; i < len(rolls); i++ {
		if rolls[i] >= explosionThreshold {
			rolls = append(rolls, rollDie(src))
		}
	}

	return Result{
		Rolls:          rolls,
		BaseSuccesses:  CountSuccesses(rolls[:poolSize], successThreshold),
		TotalSuccesses: CountSuccesses(rolls, successThreshold),
	}, nil
}

// CountSuccesses returns how many values are at or above threshold.
func CountSuccesses(rolls []int, threshold int) int {
	count := 0
	for _, r := range rolls {
		if r >= threshold {
			count++
		}
	}
	return count
}

// NewSource は crypto/rand でシードした乱数源を返す
func NewSource() (*rand.Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func rollDie(src Source) int {
	return src.Intn(Sides) + 1
}
