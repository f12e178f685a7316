package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone, address,
			role, specialization, registration_number, experience_years, bio,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Address,
		user.Role,
		user.Specialization,
		user.RegistrationNumber,
		user.ExperienceYears,
		user.Bio,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translateError(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translateError(err))
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM users WHERE LOWER(email) = LOWER($1)`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", translateError(err))
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, address = $4,
		    specialization = $5, registration_number = $6, experience_years = $7,
		    bio = $8, is_active = $9, updated_at = $10
		WHERE id = $11
	`

	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Address,
		user.Specialization,
		user.RegistrationNumber,
		user.ExperienceYears,
		user.Bio,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update user: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update password: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", translateError(err))
	}
	return nil
}

func (r *userRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to deactivate user: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, role model.Role, p model.Pagination) ([]*model.User, int, error) {
	where := " WHERE is_active = TRUE"
	args := []interface{}{}
	argCount := 1

	if role != "" {
		where += fmt.Sprintf(" AND role = $%d", argCount)
		args = append(args, role)
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := "SELECT * FROM users" + where +
		fmt.Sprintf(" ORDER BY first_name ASC, last_name ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, p.PageSize, p.Offset())

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (r *userRepository) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, int, error) {
	where := " WHERE role = 'doctor' AND is_active = TRUE"
	args := []interface{}{}
	argCount := 1

	if filters.Specialization != "" {
		where += fmt.Sprintf(" AND specialization = $%d", argCount)
		args = append(args, filters.Specialization)
		argCount++
	}
	if filters.SearchTerm != "" {
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR specialization ILIKE $%d)",
			argCount, argCount, argCount)
		args = append(args, "%"+filters.SearchTerm+"%")
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}

	query := `SELECT id, first_name, last_name, specialization, experience_years, bio FROM users` + where +
		fmt.Sprintf(" ORDER BY first_name ASC, last_name ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, total, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)`
	args := []interface{}{email}

	if excludeID != nil {
		query += " AND id <> $2"
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check user email: %w", err)
	}
	return exists, nil
}
