package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/scheduling"
)

// Sentinel errors shared by all implementations. Callers branch with
// errors.Is; the wrapped message carries the entity context.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("already exists")
	// ErrOverlap is returned when the appointments exclusion constraint
	// rejects an overlapping interval at commit time.
	ErrOverlap = errors.New("overlapping appointment interval")
	// ErrSerialization is returned when a serializable transaction keeps
	// aborting after its retries. It means a concurrent booking won.
	ErrSerialization = errors.New("serialization retries exhausted")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
		Deactivate(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, role model.Role, p model.Pagination) ([]*model.User, int, error)
		ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, int, error)
		EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error)
	}

	PatientRepository interface {
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		UpdateTx(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error
		DeactivateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		EmailExists(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error)
	}

	// AppointmentRepository persists booked slots. It doubles as the
	// schedule source for the slot engine; TxSource returns a source bound
	// to an open transaction so conflict checks and the booking insert
	// observe the same snapshot.
	AppointmentRepository interface {
		scheduling.ScheduleSource

		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
		WithSerializableTx(ctx context.Context, fn func(*sqlx.Tx) error) error
		TxSource(tx *sqlx.Tx) scheduling.ScheduleSource

		CreateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error)
		UpdateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentWithNames, int, error)
		ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]*model.AppointmentWithNames, error)
		ListForCalendar(ctx context.Context, patientID *uuid.UUID, from, to *time.Time) ([]*model.AppointmentWithNames, error)
		ListUpcoming(ctx context.Context, patientID *uuid.UUID, limit int) ([]*model.AppointmentWithNames, error)
		AvailableYears(ctx context.Context) ([]int, error)
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		Update(ctx context.Context, record *model.MedicalRecord) error
		Deactivate(ctx context.Context, id uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID, includeInactive bool, p model.Pagination) ([]*model.MedicalRecordWithAuthor, int, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID, p model.Pagination) ([]*model.PrescriptionWithDoctor, int, error)
	}

	ContactRepository interface {
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, query *model.ContactQuery) error
		Get(ctx context.Context, id uuid.UUID) (*model.ContactQuery, error)
		List(ctx context.Context, status model.ContactStatus, p model.Pagination) ([]*model.ContactQuery, int, error)
		Reply(ctx context.Context, id uuid.UUID, replyMessage string) error
	}

	// OTPRepository stores password reset codes. Create invalidates any
	// earlier unredeemed code for the same user.
	OTPRepository interface {
		Create(ctx context.Context, otp *model.PasswordOTP) error
		GetLatest(ctx context.Context, userID uuid.UUID) (*model.PasswordOTP, error)
		IncrementAttempts(ctx context.Context, id uuid.UUID) error
		MarkUsed(ctx context.Context, id uuid.UUID) error
		DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditLog) error
		List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, int, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
