package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// OTPLength is the number of digits in a reset code.
	OTPLength = 6
	// OTPTTL is how long a code stays redeemable.
	OTPTTL = 15 * time.Minute
	// OTPMaxAttempts caps verification tries per code.
	OTPMaxAttempts = 5
)

// PasswordOTP is a single-use password reset code.
type PasswordOTP struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Code      string    `db:"code" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IsUsed    bool      `db:"is_used" json:"is_used"`
	Attempts  int       `db:"attempts" json:"attempts"`
}

// Expired reports whether the code is past its redeem window at now.
func (o *PasswordOTP) Expired(now time.Time) bool {
	return now.Sub(o.CreatedAt) > OTPTTL
}

// Redeemable reports whether the code can still be verified at now.
func (o *PasswordOTP) Redeemable(now time.Time) bool {
	return !o.IsUsed && o.Attempts < OTPMaxAttempts && !o.Expired(now)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}
