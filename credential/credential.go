// Package credential turns submitted passwords into stored credentials and
// checks submissions against them.
package credential

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"useradmin/config"
)

// ErrPasswordTooLong is returned by Bcrypt.Hash for passwords over 72 bytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Hasher produces and verifies stored credentials.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, stored string) bool
}

// Bcrypt stores salted bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (Bcrypt) Verify(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// Plaintext stores the password as submitted. It exists only to run against
// userinfo tables written by the legacy deployment.
type Plaintext struct{}

func (Plaintext) Hash(password string) (string, error) {
	return password, nil
}

func (Plaintext) Verify(password, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

// ForScheme returns the Hasher configured by scheme.
func ForScheme(scheme string, bcryptCost int) (Hasher, error) {
	switch scheme {
	case config.SchemeBcrypt:
		if bcryptCost != 0 && (bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
		return Bcrypt{Cost: bcryptCost}, nil
	case config.SchemePlaintext:
		return Plaintext{}, nil
	default:
		return nil, fmt.Errorf("unsupported password scheme %q", scheme)
	}
}
