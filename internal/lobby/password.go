package lobby

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

// hashPassword derives a scrypt key for password with a fresh random salt,
// returning both hex-encoded for storage (spec.md §4.3).
func hashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, saltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(password), saltBytes, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive key: %w", err)
	}

	return hex.EncodeToString(key), hex.EncodeToString(saltBytes), nil
}

// verifyPassword re-derives the scrypt key for password with the stored
// salt and compares it to the stored hash in constant time.
func verifyPassword(hash, salt, password string) bool {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	got, err := scrypt.Key([]byte(password), saltBytes, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}
