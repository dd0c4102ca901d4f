package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	saltLength       = 16 // Random bytes per salt
	AccessCodeLength = 6  // Characters per access code

	accessCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateSalt returns 16 random bytes in their hex text form. The text form
// is what gets prefixed to passwords before hashing.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// GenerateAccessCode returns a 6 character code drawn uniformly from [A-Za-z0-9].
func GenerateAccessCode() (string, error) {
	code := make([]byte, AccessCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(accessCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate access code: %w", err)
		}
		code[i] = accessCodeCharset[n.Int64()]
	}
	return string(code), nil
}
