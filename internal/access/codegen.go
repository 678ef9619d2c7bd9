package access

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// tokenAlphabet is the character set for access code tokens. 36 characters
// across 8 positions gives a space of 36^8, large enough that collisions
// between active codes are negligible and no uniqueness check is made.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	tokenGroups    = 4
	tokenGroupSize = 2
)

// NewToken generates a human-presentable access code token: four
// hyphen-joined groups of two characters, e.g. "A1-2B-99-3C".
// Randomness comes from crypto/rand.
func NewToken() (string, error) {
	raw := make([]byte, tokenGroups*tokenGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating code token: %w", err)
	}

	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%tokenGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(tokenAlphabet[int(c)%len(tokenAlphabet)])
	}
	return b.String(), nil
}
