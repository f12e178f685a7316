package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord is a clinical note for a patient. Content is encrypted at
// rest; AuthorID is nil when the authoring account was removed. Records are
// soft-deactivated, never deleted.
type MedicalRecord struct {
	Base
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	AuthorID        *uuid.UUID `db:"author_id" json:"author_id,omitempty"`
	Content         string     `db:"content" json:"content"`
	FileDescription *string    `db:"file_description" json:"file_description,omitempty"`
	// AttachmentPath points at an externally stored file. Upload handling
	// and validation live outside this service.
	AttachmentPath *string `db:"attachment_path" json:"attachment_path,omitempty"`
	IsActive       bool    `db:"is_active" json:"is_active"`
}

type CreateMedicalRecordRequest struct {
	PatientID       string  `json:"patient_id" binding:"required,uuid"`
	Content         string  `json:"content" binding:"required"`
	FileDescription *string `json:"file_description"`
	AttachmentPath  *string `json:"attachment_path"`
}

type UpdateMedicalRecordRequest struct {
	Content         *string `json:"content"`
	FileDescription *string `json:"file_description"`
	AttachmentPath  *string `json:"attachment_path"`
}

// MedicalRecordWithAuthor is the listing projection joined with the
// authoring user's name.
type MedicalRecordWithAuthor struct {
	MedicalRecord
	AuthorName *string `db:"author_name" json:"author_name,omitempty"`
}

// Prescription is issued by a doctor for a patient.
type Prescription struct {
	Base
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	Duration       string    `db:"duration" json:"duration"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	PrescribedDate time.Time `db:"prescribed_date" json:"prescribed_date"`
}

type CreatePrescriptionRequest struct {
	PatientID      string  `json:"patient_id" binding:"required,uuid"`
	MedicationName string  `json:"medication_name" binding:"required,max=100"`
	Dosage         string  `json:"dosage" binding:"required,max=50"`
	Frequency      string  `json:"frequency" binding:"required,max=50"`
	Duration       string  `json:"duration" binding:"required,max=50"`
	Instructions   *string `json:"instructions"`
}

// PrescriptionWithDoctor is the listing projection joined with the
// prescribing doctor's name.
type PrescriptionWithDoctor struct {
	Prescription
	DoctorName string `db:"doctor_name" json:"doctor_name"`
}
