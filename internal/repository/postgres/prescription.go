package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) Create(ctx context.Context, prescription *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, medication_name, dosage, frequency,
			duration, instructions, prescribed_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if prescription.ID == uuid.Nil {
		prescription.ID = uuid.New()
	}
	now := time.Now()
	prescription.CreatedAt = now
	prescription.UpdatedAt = now
	if prescription.PrescribedDate.IsZero() {
		prescription.PrescribedDate = now
	}

	_, err := r.db.ExecContext(ctx, query,
		prescription.ID,
		prescription.PatientID,
		prescription.DoctorID,
		prescription.MedicationName,
		prescription.Dosage,
		prescription.Frequency,
		prescription.Duration,
		prescription.Instructions,
		prescription.PrescribedDate,
		prescription.CreatedAt,
		prescription.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", translateError(err))
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT * FROM prescriptions WHERE id = $1`

	var prescription model.Prescription
	if err := r.db.GetContext(ctx, &prescription, query, id); err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", translateError(err))
	}
	return &prescription, nil
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, p model.Pagination) ([]*model.PrescriptionWithDoctor, int, error) {
	countQuery := `SELECT COUNT(*) FROM prescriptions WHERE patient_id = $1`

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, patientID); err != nil {
		return nil, 0, fmt.Errorf("failed to count prescriptions: %w", err)
	}

	query := `
		SELECT pr.id, pr.patient_id, pr.doctor_id, pr.medication_name, pr.dosage,
		       pr.frequency, pr.duration, pr.instructions, pr.prescribed_date,
		       pr.created_at, pr.updated_at,
		       u.first_name || ' ' || u.last_name AS doctor_name
		FROM prescriptions pr
		JOIN users u ON u.id = pr.doctor_id
		WHERE pr.patient_id = $1
		ORDER BY pr.prescribed_date DESC
		LIMIT $2 OFFSET $3
	`

	var prescriptions []*model.PrescriptionWithDoctor
	if err := r.db.SelectContext(ctx, &prescriptions, query, patientID, p.PageSize, p.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, total, nil
}
