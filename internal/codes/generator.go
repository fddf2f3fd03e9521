// Package codes produces the short numeric codes shared with family members.
package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"care4kids/internal/models"
)

// Kind distinguishes the two code namespaces
type Kind string

const (
	KindInvitation        Kind = "invitation"
	KindChildRegistration Kind = "child_registration"
)

// CodeLength is the fixed length of every generated code
const CodeLength = 6

// codeSpace is the size of the numeric space (000000-999999)
var codeSpace = big.NewInt(1_000_000)

// maxAttempts bounds the collision retry loop
const maxAttempts = 100

// ActiveChecker reports whether a code is currently held by a pending record
// of the given kind. The check is advisory; the storage layer's uniqueness
// constraint on pending codes is what actually prevents duplicates.
type ActiveChecker interface {
	IsCodeActive(kind Kind, code string) (bool, error)
}

// Generator produces unique 6-digit codes, leading zeros preserved
type Generator struct {
	checker ActiveChecker
}

// NewGenerator creates a new code generator
func NewGenerator(checker ActiveChecker) *Generator {
	return &Generator{checker: checker}
}

// Generate draws codes uniformly from the 6-digit space until one is free of
// pending records of the given kind, or the attempt budget runs out.
func (g *Generator) Generate(kind Kind) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		n, err := rand.Int(rand.Reader, codeSpace)
		if err != nil {
			return "", fmt.Errorf("failed to draw random code: %w", err)
		}
		code := fmt.Sprintf("%06d", n.Int64())

		active, err := g.checker.IsCodeActive(kind, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code availability: %w", err)
		}
		if !active {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: gave up after %d attempts for kind %q", models.ErrCodeSpaceExhausted, maxAttempts, kind)
}

// IsWellFormed reports whether s is exactly six ASCII digits
func IsWellFormed(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
