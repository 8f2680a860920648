package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// HashPasscode generates a bcrypt hash of the teacher passcode.
func HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(hash), nil
}

// ComparePasscode compares a bcrypt hash with its plaintext passcode.
func ComparePasscode(hash, passcode string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode))
}
