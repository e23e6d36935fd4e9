package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords bcrypt cannot accept.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// Hasher hashes and verifies room passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// PasswordGuard stores room passwords as salted bcrypt hashes.
type PasswordGuard struct {
	cost int
}

// NewPasswordGuard returns a guard using the given bcrypt cost. A cost of
// zero selects bcrypt.DefaultCost.
func NewPasswordGuard(cost int) *PasswordGuard {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordGuard{cost: cost}
}

func (g *PasswordGuard) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

func (g *PasswordGuard) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Allow applies the room password policy: a room without a hash accepts
// anything, a protected room needs a non-empty password that verifies.
func Allow(h Hasher, hash, password string) bool {
	if hash == "" {
		return true
	}
	if password == "" {
		return false
	}
	return h.Verify(password, hash)
}
