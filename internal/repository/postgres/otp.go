package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type otpRepository struct {
	BaseRepository
}

func NewOTPRepository(base BaseRepository) repository.OTPRepository {
	return &otpRepository{base}
}

// Create stores a fresh reset code and retires any earlier unredeemed code
// for the same user, so exactly one code is live at a time.
func (r *otpRepository) Create(ctx context.Context, otp *model.PasswordOTP) error {
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	otp.CreatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		invalidate := `UPDATE password_otps SET is_used = TRUE WHERE user_id = $1 AND is_used = FALSE`
		if _, err := tx.ExecContext(ctx, invalidate, otp.UserID); err != nil {
			return fmt.Errorf("failed to invalidate previous codes: %w", err)
		}

		insert := `
			INSERT INTO password_otps (id, user_id, code, created_at, is_used, attempts)
			VALUES ($1, $2, $3, $4, FALSE, 0)
		`
		if _, err := tx.ExecContext(ctx, insert, otp.ID, otp.UserID, otp.Code, otp.CreatedAt); err != nil {
			return fmt.Errorf("failed to create password reset code: %w", translateError(err))
		}
		return nil
	})
}

func (r *otpRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*model.PasswordOTP, error) {
	query := `
		SELECT * FROM password_otps
		WHERE user_id = $1 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	var otp model.PasswordOTP
	if err := r.db.GetContext(ctx, &otp, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get password reset code: %w", translateError(err))
	}
	return &otp, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE password_otps SET attempts = attempts + 1 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment code attempts: %w", err)
	}
	return nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE password_otps SET is_used = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark code used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to mark code used: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *otpRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM password_otps WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	return result.RowsAffected()
}
