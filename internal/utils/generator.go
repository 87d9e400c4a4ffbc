package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	DefaultShortKeyLength = 7
	alphabet              = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateShortKey draws a key uniformly from the 62-character alphabet.
// Collisions are handled by the store's uniqueness constraint at create;
// callers retry on conflict.
func GenerateShortKey() (string, error) {
	return GenerateShortKeyWithLength(DefaultShortKeyLength)
}

func GenerateShortKeyWithLength(length int) (string, error) {
	key := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := range key {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		key[i] = alphabet[randomIndex.Int64()]
	}

	return string(key), nil
}
