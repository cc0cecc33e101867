package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin = 1000
	codeMax = 9999
)

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator draws four-digit codes uniformly from [1000, 9999] using
// crypto/rand.
type RandomGenerator struct{}

func (RandomGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }
