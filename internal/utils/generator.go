package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	DefaultShortCodeLength = 6
	Alphabet               = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// GenerateShortCode returns a random code of DefaultShortCodeLength characters.
// Collisions are the caller's problem.
func GenerateShortCode() (string, error) {
	return GenerateShortCodeWithLength(DefaultShortCodeLength)
}

func GenerateShortCodeWithLength(length int) (string, error) {
	code := make([]byte, length)

	for i := range code {
		randomIndex, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		code[i] = Alphabet[randomIndex.Int64()]
	}

	return string(code), nil
}
