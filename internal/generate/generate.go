package generate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mathrand "math/rand"
)

const (
	CharsetAlphaNumeric         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	CharsetAlphaNumericNoVowels = "0123456789BCDFGHJKLMNPQRSTVWXYZbcdfghjklmnpqrstvwxyz" // For user-facing areas, to avoid profanity
	CharsetNumbers              = "0123456789"
)

// CryptoRandom generates a cryptographically-safe random string of length n
// drawn uniformly from charset.
func CryptoRandom(n int, charset string) (string, error) {
	if n <= 0 {
		return "", nil
	}

	max := big.NewInt(int64(len(charset)))
	bytes := make([]byte, n)
	for i := range bytes {
		bigint, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("couldn't generate random string of len %d: %w", n, err)
		}

		bytes[i] = charset[bigint.Int64()]
	}

	return string(bytes), nil
}

// MathRandom generates a random string that does not need to be cryptographically secure.
// This is preferred to CryptoRandom when you don't need the cryptographic security as it is
// not a drain on the entropy pool.
func MathRandom(n int, charset string) string {
	if n <= 0 {
		return ""
	}

	bytes := make([]byte, n)
	for i := range bytes {
		//nolint:gosec // We purposely use mathrand to avoid draining the entropy pool
		j := mathrand.Int31n(int32(len(charset)))
		bytes[i] = charset[j]
	}

	return string(bytes)
}
