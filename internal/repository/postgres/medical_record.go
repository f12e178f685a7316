package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(base BaseRepository) repository.MedicalRecordRepository {
	return &medicalRecordRepository{base}
}

func (r *medicalRecordRepository) Create(ctx context.Context, record *model.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (
			id, patient_id, author_id, content, file_description,
			attachment_path, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	record.IsActive = true

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.AuthorID,
		record.Content,
		record.FileDescription,
		record.AttachmentPath,
		record.IsActive,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", translateError(err))
	}
	return nil
}

func (r *medicalRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error) {
	query := `SELECT * FROM medical_records WHERE id = $1`

	var record model.MedicalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", translateError(err))
	}
	return &record, nil
}

func (r *medicalRecordRepository) Update(ctx context.Context, record *model.MedicalRecord) error {
	query := `
		UPDATE medical_records
		SET content = $1, file_description = $2, attachment_path = $3, updated_at = $4
		WHERE id = $5
	`

	record.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		record.Content,
		record.FileDescription,
		record.AttachmentPath,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update medical record: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *medicalRecordRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE medical_records SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate medical record: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to deactivate medical record: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *medicalRecordRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, includeInactive bool, p model.Pagination) ([]*model.MedicalRecordWithAuthor, int, error) {
	where := " WHERE m.patient_id = $1"
	args := []interface{}{patientID}
	argCount := 2

	if !includeInactive {
		where += " AND m.is_active = TRUE"
	}

	countQuery := "SELECT COUNT(*) FROM medical_records m" + where

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count medical records: %w", err)
	}

	query := `
		SELECT m.id, m.patient_id, m.author_id, m.content, m.file_description,
		       m.attachment_path, m.is_active, m.created_at, m.updated_at,
		       u.first_name || ' ' || u.last_name AS author_name
		FROM medical_records m
		LEFT JOIN users u ON u.id = m.author_id
	` + where + fmt.Sprintf(" ORDER BY m.created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, p.PageSize, p.Offset())

	var records []*model.MedicalRecordWithAuthor
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list medical records: %w", err)
	}
	return records, total, nil
}
