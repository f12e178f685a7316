package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
)

// patientPageSize is the patient directory's page length; shorter than the
// appointment listings because each row carries contact details.
const patientPageSize = 20

const (
	msgDuplicateEmail = "A patient with this email already exists."
	msgFutureBirth    = "Date of birth cannot be in the future."
	msgInvalidBirth   = "Enter a valid date in YYYY-MM-DD format."
)

// Service owns the patient registry. Removal is always a soft deactivate:
// appointment history keeps pointing at the row.
type Service struct {
	repo    repository.PatientRepository
	outbox  repository.OutboxRepository
	auditor *audit.Service
	logger  *logger.Logger
}

func NewService(repo repository.PatientRepository, outbox repository.OutboxRepository, auditor *audit.Service, logger *logger.Logger) *Service {
	return &Service{repo: repo, outbox: outbox, auditor: auditor, logger: logger}
}

// Create registers a new patient. Email uniqueness is checked up front for a
// field-level message; the unique index stays as the concurrent-insert
// backstop.
func (s *Service) Create(ctx context.Context, actor *model.Actor, req *model.CreatePatientRequest) (*model.Patient, error) {
	verrs := apperrors.NewValidationErrors()

	dob := s.parseBirthDate(req.DateOfBirth, verrs)

	email := strings.TrimSpace(req.Email)
	exists, err := s.repo.EmailExists(ctx, email, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check patient email: %w", err)
	}
	if exists {
		verrs.Add("email", msgDuplicateEmail)
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	patient := &model.Patient{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       email,
		DateOfBirth: dob,
		Phone:       req.Phone,
		Address:     req.Address,
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, patient); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				verrs.Add("email", msgDuplicateEmail)
				return verrs
			}
			return fmt.Errorf("failed to create patient: %w", err)
		}
		return s.appendEvent(ctx, tx, model.EventPatientCreated, patient)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("patient registered", "patient_id", patient.ID)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityPatient, patient.ID, patient)
	return patient, nil
}

// Get returns one patient record. Staff and doctors see any; a patient-role
// actor only their own record.
func (s *Service) Get(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if actor != nil && actor.Role == model.RolePatient && !strings.EqualFold(patient.Email, actor.Email) {
		return nil, apperrors.NewForbidden("not authorized to view this patient")
	}
	return patient, nil
}

// Update edits a patient record in place. Inactive records read as missing,
// the same way the listings hide them.
func (s *Service) Update(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if !patient.IsActive {
		return nil, fmt.Errorf("failed to get patient: %w", repository.ErrNotFound)
	}

	verrs := apperrors.NewValidationErrors()

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		exists, err := s.repo.EmailExists(ctx, email, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check patient email: %w", err)
		}
		if exists {
			verrs.Add("email", msgDuplicateEmail)
		} else {
			patient.Email = email
		}
	}
	if req.DateOfBirth != nil {
		if dob := s.parseBirthDate(*req.DateOfBirth, verrs); !dob.IsZero() {
			patient.DateOfBirth = dob
		}
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		patient.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		patient.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		patient.Phone = req.Phone
	}
	if req.Address != nil {
		patient.Address = req.Address
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.UpdateTx(ctx, tx, patient); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				verrs.Add("email", msgDuplicateEmail)
				return verrs
			}
			return fmt.Errorf("failed to update patient: %w", err)
		}
		return s.appendEvent(ctx, tx, model.EventPatientUpdated, patient)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityPatient, patient.ID, patient)
	return patient, nil
}

// Deactivate retires a patient record. The row survives for appointment
// history; upcoming listings stop showing their bookings.
func (s *Service) Deactivate(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get patient: %w", err)
	}
	if !patient.IsActive {
		return fmt.Errorf("failed to get patient: %w", repository.ErrNotFound)
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.DeactivateTx(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to deactivate patient: %w", err)
		}
		patient.IsActive = false
		return s.appendEvent(ctx, tx, model.EventPatientDeactivated, patient)
	})
	if err != nil {
		return err
	}

	s.logger.Info("patient deactivated", "patient_id", id)
	s.auditor.Record(ctx, actor, model.AuditActionDeactivate, model.AuditEntityPatient, id, nil)
	return nil
}

// List pages through active patients. Doctors only see patients they have an
// appointment with; patient-role actors have no directory at all.
func (s *Service) List(ctx context.Context, actor *model.Actor, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	if filters == nil {
		filters = &model.PatientFilters{}
	}
	if filters.PageSize < 1 {
		filters.PageSize = patientPageSize
	}
	filters.Normalize()

	if actor != nil {
		switch actor.Role {
		case model.RoleDoctor:
			doctorID := actor.ID
			filters.DoctorID = &doctorID
		case model.RolePatient:
			return nil, 0, apperrors.NewForbidden("not authorized to list patients")
		}
	}

	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (s *Service) appendEvent(ctx context.Context, tx *sqlx.Tx, eventType string, patient *model.Patient) error {
	payload, err := json.Marshal(patient)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := s.outbox.CreateTx(ctx, tx, &model.OutboxEvent{EventType: eventType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

func (s *Service) parseBirthDate(raw string, verrs *apperrors.ValidationErrors) time.Time {
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		verrs.Add("date_of_birth", msgInvalidBirth)
		return time.Time{}
	}
	if dob.After(time.Now()) {
		verrs.Add("date_of_birth", msgFutureBirth)
		return time.Time{}
	}
	return dob
}
