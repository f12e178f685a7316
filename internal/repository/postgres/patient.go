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

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, first_name, last_name, email, date_of_birth,
			phone, address, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	patient.IsActive = true

	_, err := tx.ExecContext(ctx, query,
		patient.ID,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.DateOfBirth,
		patient.Phone,
		patient.Address,
		patient.IsActive,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", translateError(err))
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", translateError(err))
	}
	return &patient, nil
}

// GetByEmail resolves the patient record behind a patient-role login; the
// two are linked by email only.
func (r *patientRepository) GetByEmail(ctx context.Context, email string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE LOWER(email) = LOWER($1)`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, email); err != nil {
		return nil, fmt.Errorf("failed to get patient by email: %w", translateError(err))
	}
	return &patient, nil
}

func (r *patientRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, email = $3, date_of_birth = $4,
		    phone = $5, address = $6, updated_at = $7
		WHERE id = $8
	`

	patient.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.DateOfBirth,
		patient.Phone,
		patient.Address,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update patient: %w", repository.ErrNotFound)
	}
	return nil
}

// DeactivateTx flags the patient inactive. Their appointment history stays
// untouched; upcoming listings stop showing it.
func (r *patientRepository) DeactivateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	query := `UPDATE patients SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate patient: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to deactivate patient: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	where := " WHERE is_active = TRUE"
	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != nil {
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM appointments a WHERE a.patient_id = patients.id AND a.doctor_id = $%d)", argCount)
		args = append(args, *filters.DoctorID)
		argCount++
	}
	if filters.SearchTerm != "" {
		where += fmt.Sprintf(" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)",
			argCount, argCount, argCount, argCount)
		args = append(args, "%"+filters.SearchTerm+"%")
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := "SELECT * FROM patients" + where +
		fmt.Sprintf(" ORDER BY first_name ASC, last_name ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM patients WHERE LOWER(email) = LOWER($1)`
	args := []interface{}{email}

	if excludeID != nil {
		query += " AND id <> $2"
		args = append(args, *excludeID)
	}
	query += ")"

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("failed to check patient email: %w", err)
	}
	return exists, nil
}
