// Package invite holds the registration invite code.
//
// A Gate is created once at startup and only read afterwards, so a single
// value can be shared by every request goroutine.
package invite

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
)

const (
	// Alphabet is the character set of generated codes.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// DefaultLength is the length of generated codes.
	DefaultLength = 8
)

// Gate holds the invite code required to register.
type Gate struct {
	code string
}

// New returns a Gate holding a freshly generated code of the given length.
func New(length int) (*Gate, error) {
	if length <= 0 {
		return nil, fmt.Errorf("invalid invite code length %d", length)
	}
	code, err := generate(length)
	if err != nil {
		return nil, err
	}
	return &Gate{code: code}, nil
}

// Fixed returns a Gate for an operator-supplied code.
func Fixed(code string) (*Gate, error) {
	if code == "" {
		return nil, errors.New("invite code must not be empty")
	}
	return &Gate{code: code}, nil
}

// Code returns the current invite code.
func (g *Gate) Code() string {
	return g.code
}

// Check reports whether input matches the code exactly. Comparison is case
// sensitive.
func (g *Gate) Check(input string) bool {
	return subtle.ConstantTimeCompare([]byte(input), []byte(g.code)) == 1
}

func generate(length int) (string, error) {
	limit := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}
