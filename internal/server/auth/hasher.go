package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the fixed work factor for every digest the service stores.
const BcryptCost = 10

// bcrypt ignores input past this many bytes.
const bcryptMaxInput = 72

// SecretHasher produces salted one-way digests of secrets and checks
// secrets against them.
type SecretHasher interface {
	// Hash returns a salted digest. Failures wrap common.ErrHashing.
	Hash(secret string) (string, error)

	// Verify reports whether secret matches digest. A malformed digest is
	// a mismatch, never an error.
	Verify(secret, digest string) bool
}

// BcryptHasher implements SecretHasher with bcrypt.
type BcryptHasher struct {
	cost    int
	prehash bool
}

type HasherOption func(*BcryptHasher)

// WithPrehash makes the hasher run every secret through SHA-256 first.
// Use it for long secrets such as JWTs, whose first 72 bytes are mostly a
// shared header.
func WithPrehash() HasherOption {
	return func(h *BcryptHasher) { h.prehash = true }
}

// WithCost overrides BcryptCost. Tests use bcrypt.MinCost.
func WithCost(cost int) HasherOption {
	return func(h *BcryptHasher) { h.cost = cost }
}

func NewBcryptHasher(opts ...HasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: BcryptCost}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(h.input(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashing, err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(secret, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), h.input(secret)) == nil
}

// input returns the bytes handed to bcrypt. Secrets longer than bcrypt can
// read are always prehashed so they are never silently truncated.
func (h *BcryptHasher) input(secret string) []byte {
	if !h.prehash && len(secret) <= bcryptMaxInput {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
