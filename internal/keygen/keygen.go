// Package keygen produces random license key tokens.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Strategy names accepted by New.
const (
	StrategyHex    = "hex"
	StrategyBase36 = "base36"
)

const (
	hexBytes     = 16
	base36Length = 22
	base36Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generator produces uppercase random tokens. Uniqueness is not guaranteed;
// callers rely on the store rejecting duplicates.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) {
	return f()
}

// New returns the generator for strategy.
func New(strategy string) (Generator, error) {
	switch strategy {
	case StrategyHex, "":
		return GeneratorFunc(Hex), nil
	case StrategyBase36:
		return GeneratorFunc(Base36), nil
	default:
		return nil, fmt.Errorf("unsupported key generation strategy: %s", strategy)
	}
}

// Hex returns 16 random bytes as 32 uppercase hex characters.
func Hex() (string, error) {
	b := make([]byte, hexBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// Base36 returns 22 random uppercase base-36 characters.
func Base36() (string, error) {
	var sb strings.Builder
	sb.Grow(base36Length)
	max := big.NewInt(int64(len(base36Digits)))
	for i := 0; i < base36Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		sb.WriteByte(base36Digits[n.Int64()])
	}
	return sb.String(), nil
}
