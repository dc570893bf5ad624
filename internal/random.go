package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

type TokenID [16]byte

func NewTokenID() (TokenID, error) {
	var tid TokenID
	_, err := rand.Read(tid[:])
	return tid, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// NewCode generates a numeric code with the given digit count using
// crypto/rand.
func NewCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid code generation length")
	}
	return code, nil
}

// EncodeContactToken packs a token id and its code into a single opaque
// string suitable for out-of-band delivery links.
func EncodeContactToken(tokenID string, code string) (string, error) {
	tid, err := ParseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 0, len(tid)+len(code))
	raw = append(raw, tid[:]...)
	raw = append(raw, code...)

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeContactToken(token string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", err
	}

	var tid TokenID
	if len(raw) <= len(tid) {
		return "", "", errors.New("invalid contact token size")
	}

	copy(tid[:], raw[:len(tid)])
	return tid.String(), string(raw[len(tid):]), nil
}

// DeterministicIndexes derives count distinct indexes in [0, pool) from
// seed. Equal seeds always produce equal selections, so synthetic sessions
// present stable content across repeated searches.
func DeterministicIndexes(seed string, count, pool int) []int {
	if count > pool {
		count = pool
	}
	if count <= 0 {
		return nil
	}

	digest := sha256.Sum256([]byte(seed))
	out := make([]int, 0, count)
	used := make(map[int]bool, count)

	round := 0
	for len(out) < count {
		for i := 0; i+8 <= len(digest) && len(out) < count; i += 8 {
			v := binary.BigEndian.Uint64(digest[i : i+8])
			idx := int(v % uint64(pool))
			for used[idx] {
				idx = (idx + 1) % pool
			}
			used[idx] = true
			out = append(out, idx)
		}
		round++
		digest = sha256.Sum256(append(digest[:], byte(round)))
	}

	return out
}
