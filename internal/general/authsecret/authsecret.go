// Package authsecret generates and verifies the one-time codes the driver
// OTP-bootstrap flow (spec §4.9, `/auth/request-driver-otp` and
// `/auth/get-complete-driver-info`) hands out. Codes are never held in the
// clear once issued: only their bcrypt hash is kept, the same way a
// password would be.
package authsecret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var ErrCodeMismatch = errors.New("otp code does not match")

// Generate returns a uniformly random 6-digit code.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("authsecret: failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Hash bcrypt-hashes a code for at-rest storage.
func Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("authsecret: failed to hash code: %w", err)
	}
	return string(hashed), nil
}

// Verify compares a plaintext code against its bcrypt hash.
func Verify(hash, code string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return ErrCodeMismatch
	}
	return nil
}
