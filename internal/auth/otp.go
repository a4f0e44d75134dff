package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// GenerateOTP produces a 6-digit one-time code, uniformly random over
// [100000, 999999], drawn from a cryptographically secure source.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}

	return fmt.Sprintf("%06d", otpMin+n.Int64()), nil
}
