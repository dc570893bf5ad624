package password

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const (
	upperChars   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars   = "abcdefghijkmnopqrstuvwxyz"
	digitChars   = "23456789"
	specialChars = "!@#$%^&*-_=+"
)

// Policy defines a public type used by goRecover APIs.
//
// Policy instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Policy struct {
	Length         int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// Generator defines a public type used by goRecover APIs.
//
// Generator instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Generator struct {
	policy   Policy
	alphabet string
}

// NewGenerator describes the newgenerator operation and its observable behavior.
//
// NewGenerator may return an error when input validation, dependency calls, or security checks fail.
// NewGenerator does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewGenerator(p Policy) (*Generator, error) {
	if p.Length < 8 {
		return nil, errors.New("password length must be >= 8")
	}

	required := 0
	alphabet := ""
	if p.RequireUpper {
		required++
	}
	if p.RequireLower {
		required++
	}
	if p.RequireDigit {
		required++
	}
	if p.RequireSpecial {
		required++
	}
	if required > p.Length {
		return nil, errors.New("password length too short for required classes")
	}

	// Ambiguous glyphs (0/O, 1/l/I) are excluded from every class; these
	// passwords are read out of emails and typed by hand.
	alphabet = upperChars + lowerChars + digitChars
	if p.RequireSpecial {
		alphabet += specialChars
	}

	return &Generator{policy: p, alphabet: alphabet}, nil
}

// Generate describes the generate operation and its observable behavior.
//
// Generate may return an error when input validation, dependency calls, or security checks fail.
// Generate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Generator) Generate() (string, error) {
	if g == nil {
		return "", errors.New("nil generator")
	}

	out := make([]byte, 0, g.policy.Length)

	// One character from each required class first, then fill from the
	// full alphabet.
	if g.policy.RequireUpper {
		c, err := pick(upperChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if g.policy.RequireLower {
		c, err := pick(lowerChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if g.policy.RequireDigit {
		c, err := pick(digitChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	if g.policy.RequireSpecial {
		c, err := pick(specialChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for len(out) < g.policy.Length {
		c, err := pick(g.alphabet)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	if err := shuffle(out); err != nil {
		return "", err
	}

	return string(out), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
