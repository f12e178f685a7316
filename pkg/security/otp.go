package security

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

var ErrOTPGeneration = errors.New("otp generation failed")

// GenerateOTP returns a zero-padded numeric one-time code of the given
// length, drawn from crypto/rand.
func GenerateOTP(digits int) (string, error) {
	if digits <= 0 {
		return "", ErrOTPGeneration
	}

	var sb strings.Builder
	sb.Grow(digits)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", ErrOTPGeneration
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}
