// Package medical manages clinical notes and prescriptions. Record content
// is encrypted before it reaches the database and decrypted on the way out;
// every single-record read lands in the audit trail.
package medical

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/security"
)

const (
	msgSelectPatient = "Please select a patient."
	msgEmptyContent  = "Content cannot be empty."
)

type Service struct {
	records       repository.MedicalRecordRepository
	prescriptions repository.PrescriptionRepository
	patients      repository.PatientRepository
	encryptor     security.Encryptor
	auditor       *audit.Service
	logger        *logger.Logger
}

func NewService(
	records repository.MedicalRecordRepository,
	prescriptions repository.PrescriptionRepository,
	patients repository.PatientRepository,
	encryptor security.Encryptor,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		records:       records,
		prescriptions: prescriptions,
		patients:      patients,
		encryptor:     encryptor,
		auditor:       auditor,
		logger:        logger,
	}
}

// CreateRecord stores a new clinical note authored by the acting user.
func (s *Service) CreateRecord(ctx context.Context, actor *model.Actor, req *model.CreateMedicalRecordRequest) (*model.MedicalRecord, error) {
	if actor.Role != model.RoleDoctor && actor.Role != model.RoleAdmin {
		return nil, apperrors.NewForbidden("only clinical staff can write medical records")
	}

	verrs := apperrors.NewValidationErrors()

	patientID, err := s.resolvePatient(ctx, req.PatientID, verrs)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		verrs.Add("content", msgEmptyContent)
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	sealed, err := security.EncryptString(s.encryptor, content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt record content: %w", err)
	}

	authorID := actor.ID
	record := &model.MedicalRecord{
		PatientID:       patientID,
		AuthorID:        &authorID,
		Content:         sealed,
		FileDescription: trimmed(req.FileDescription),
		AttachmentPath:  trimmed(req.AttachmentPath),
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create medical record: %w", err)
	}

	// Callers get the plaintext back; only the stored row is sealed.
	record.Content = content

	s.logger.Info("medical record created",
		"record_id", record.ID, "patient_id", patientID, "author_id", actor.ID)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityMedicalRecord, record.ID, nil)
	return record, nil
}

// GetRecord returns one decrypted record. Patients only reach their own
// active records; every successful read is audited.
func (s *Service) GetRecord(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.MedicalRecord, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == model.RolePatient {
		own, err := s.actorPatient(ctx, actor)
		if err != nil {
			return nil, err
		}
		if record.PatientID != own.ID {
			return nil, apperrors.NewForbidden("not authorized to view this medical record")
		}
		if !record.IsActive {
			return nil, fmt.Errorf("failed to get medical record: %w", repository.ErrNotFound)
		}
	}

	plain, err := security.DecryptString(s.encryptor, record.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt record content: %w", err)
	}
	record.Content = plain

	s.auditor.Record(ctx, actor, model.AuditActionView, model.AuditEntityMedicalRecord, record.ID, nil)
	return record, nil
}

// UpdateRecord edits a note. Only the authoring doctor or an admin may
// change it; a deactivated record reads as missing.
func (s *Service) UpdateRecord(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.UpdateMedicalRecordRequest) (*model.MedicalRecord, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, fmt.Errorf("failed to get medical record: %w", repository.ErrNotFound)
	}
	if err := s.authorizeWrite(actor, record, "not authorized to edit this medical record"); err != nil {
		return nil, err
	}

	plain := ""
	if req.Content != nil {
		plain = strings.TrimSpace(*req.Content)
		if plain == "" {
			verrs := apperrors.NewValidationErrors()
			verrs.Add("content", msgEmptyContent)
			return nil, verrs
		}
		sealed, err := security.EncryptString(s.encryptor, plain)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt record content: %w", err)
		}
		record.Content = sealed
	}
	if req.FileDescription != nil {
		record.FileDescription = trimmed(req.FileDescription)
	}
	if req.AttachmentPath != nil {
		record.AttachmentPath = trimmed(req.AttachmentPath)
	}

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update medical record: %w", err)
	}

	if req.Content == nil {
		plain, err = security.DecryptString(s.encryptor, record.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt record content: %w", err)
		}
	}
	record.Content = plain

	// Clinical content stays out of the audit trail.
	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityMedicalRecord, record.ID, nil)
	return record, nil
}

// DeactivateRecord hides a note without deleting it. Deactivating twice
// reports the record as missing.
func (s *Service) DeactivateRecord(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if !record.IsActive {
		return fmt.Errorf("failed to get medical record: %w", repository.ErrNotFound)
	}
	if err := s.authorizeWrite(actor, record, "not authorized to edit this medical record"); err != nil {
		return err
	}

	if err := s.records.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate medical record: %w", err)
	}

	s.logger.Info("medical record deactivated", "record_id", id, "actor_id", actor.ID)
	s.auditor.Record(ctx, actor, model.AuditActionDeactivate, model.AuditEntityMedicalRecord, id, nil)
	return nil
}

// ListRecords pages a patient's decrypted history. Staff see deactivated
// entries too; patients see only their own active notes.
func (s *Service) ListRecords(ctx context.Context, actor *model.Actor, patientID uuid.UUID, p model.Pagination) ([]*model.MedicalRecordWithAuthor, int, error) {
	if err := s.authorizePatientScope(ctx, actor, patientID, "not authorized to view these medical records"); err != nil {
		return nil, 0, err
	}
	p.Normalize()

	includeInactive := actor.Role != model.RolePatient
	records, total, err := s.records.ListByPatient(ctx, patientID, includeInactive, p)
	if err != nil {
		return nil, 0, err
	}

	for _, record := range records {
		plain, err := security.DecryptString(s.encryptor, record.Content)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decrypt record %s: %w", record.ID, err)
		}
		record.Content = plain
	}
	return records, total, nil
}

// CreatePrescription issues a prescription in the acting doctor's name.
// Prescriptions are immutable once written.
func (s *Service) CreatePrescription(ctx context.Context, actor *model.Actor, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if actor.Role != model.RoleDoctor {
		return nil, apperrors.NewForbidden("only doctors can issue prescriptions")
	}

	verrs := apperrors.NewValidationErrors()
	patientID, err := s.resolvePatient(ctx, req.PatientID, verrs)
	if err != nil {
		return nil, err
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	prescription := &model.Prescription{
		PatientID:      patientID,
		DoctorID:       actor.ID,
		MedicationName: strings.TrimSpace(req.MedicationName),
		Dosage:         strings.TrimSpace(req.Dosage),
		Frequency:      strings.TrimSpace(req.Frequency),
		Duration:       strings.TrimSpace(req.Duration),
		Instructions:   trimmed(req.Instructions),
	}
	if err := s.prescriptions.Create(ctx, prescription); err != nil {
		return nil, fmt.Errorf("failed to create prescription: %w", err)
	}

	s.logger.Info("prescription issued",
		"prescription_id", prescription.ID, "patient_id", patientID, "doctor_id", actor.ID)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityPrescription, prescription.ID, nil)
	return prescription, nil
}

// GetPrescription returns one prescription, patients their own only.
func (s *Service) GetPrescription(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Prescription, error) {
	prescription, err := s.prescriptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == model.RolePatient {
		own, err := s.actorPatient(ctx, actor)
		if err != nil {
			return nil, err
		}
		if prescription.PatientID != own.ID {
			return nil, apperrors.NewForbidden("not authorized to view this prescription")
		}
	}
	return prescription, nil
}

// ListPrescriptions pages a patient's prescriptions, newest first.
func (s *Service) ListPrescriptions(ctx context.Context, actor *model.Actor, patientID uuid.UUID, p model.Pagination) ([]*model.PrescriptionWithDoctor, int, error) {
	if err := s.authorizePatientScope(ctx, actor, patientID, "not authorized to view these prescriptions"); err != nil {
		return nil, 0, err
	}
	p.Normalize()
	return s.prescriptions.ListByPatient(ctx, patientID, p)
}

// resolvePatient parses the request's patient id and checks the patient is
// active. Lookup failures other than a missing row propagate unchanged.
func (s *Service) resolvePatient(ctx context.Context, raw string, verrs *apperrors.ValidationErrors) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		verrs.Add("patient_id", msgSelectPatient)
		return uuid.Nil, nil
	}
	patient, err := s.patients.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		verrs.Add("patient_id", msgSelectPatient)
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	if !patient.IsActive {
		verrs.Add("patient_id", msgSelectPatient)
	}
	return id, nil
}

func (s *Service) authorizeWrite(actor *model.Actor, record *model.MedicalRecord, denial string) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if actor.Role == model.RoleDoctor && record.AuthorID != nil && *record.AuthorID == actor.ID {
		return nil
	}
	return apperrors.NewForbidden(denial)
}

// authorizePatientScope lets staff and doctors reach any patient's chart
// while pinning patient actors to their linked record.
func (s *Service) authorizePatientScope(ctx context.Context, actor *model.Actor, patientID uuid.UUID, denial string) error {
	if actor.Role != model.RolePatient {
		return nil
	}
	own, err := s.actorPatient(ctx, actor)
	if err != nil {
		return err
	}
	if own.ID != patientID {
		return apperrors.NewForbidden(denial)
	}
	return nil
}

// actorPatient resolves a patient actor to their clinical record by login
// email. Accounts without a linked record have no chart to see.
func (s *Service) actorPatient(ctx context.Context, actor *model.Actor) (*model.Patient, error) {
	patient, err := s.patients.GetByEmail(ctx, actor.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewForbidden("no patient record is linked to this account")
	}
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
