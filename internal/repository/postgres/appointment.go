package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/scheduling"
)

// appointmentWithNamesSelect is the listing projection. The patient join is
// a LEFT JOIN so rows whose patient reference was cleared still appear.
const appointmentWithNamesSelect = `
	SELECT a.id, a.doctor_id, a.patient_id, a.scheduled_time, a.duration_minutes,
	       a.status, a.reason, a.created_at, a.updated_at,
	       d.first_name || ' ' || d.last_name AS doctor_name,
	       p.first_name || ' ' || p.last_name AS patient_name
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	LEFT JOIN patients p ON p.id = a.patient_id
`

const appointmentCountSelect = `
	SELECT COUNT(*)
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	LEFT JOIN patients p ON p.id = a.patient_id
`

// busyIntervalsQuery computes each appointment's occupied interval, falling
// back to the clinic default when no explicit duration is stored. Cancelled
// rows never block a slot.
const busyIntervalsQuery = `
	SELECT a.scheduled_time AS start_time,
	       a.scheduled_time + make_interval(mins => COALESCE(a.duration_minutes, $4)) AS end_time
	FROM appointments a
	WHERE a.doctor_id = $1
	  AND a.status <> 'cancelled'
	  AND a.scheduled_time < $3
	  AND a.scheduled_time + make_interval(mins => COALESCE(a.duration_minutes, $4)) > $2
`

type busyRow struct {
	Start time.Time `db:"start_time"`
	End   time.Time `db:"end_time"`
}

func selectBusyIntervals(ctx context.Context, q sqlx.QueryerContext, defaultMinutes int, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]scheduling.Interval, error) {
	query := busyIntervalsQuery
	args := []interface{}{doctorID, from, to, defaultMinutes}

	if excludeID != nil {
		query += " AND a.id <> $5"
		args = append(args, *excludeID)
	}
	query += " ORDER BY a.scheduled_time ASC"

	var rows []busyRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select busy intervals: %w", err)
	}

	intervals := make([]scheduling.Interval, len(rows))
	for i, row := range rows {
		intervals[i] = scheduling.Interval{Start: row.Start, End: row.End}
	}
	return intervals, nil
}

type appointmentRepository struct {
	BaseRepository
	defaultSlotMinutes int
	timezone           string
}

func NewAppointmentRepository(base BaseRepository, defaultSlotMinutes int, timezone string) repository.AppointmentRepository {
	return &appointmentRepository{
		BaseRepository:     base,
		defaultSlotMinutes: defaultSlotMinutes,
		timezone:           timezone,
	}
}

func (r *appointmentRepository) BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]scheduling.Interval, error) {
	return selectBusyIntervals(ctx, r.db, r.defaultSlotMinutes, doctorID, from, to, excludeID)
}

// TxSource returns a schedule source reading through tx, so conflict checks
// inside a booking transaction see its snapshot.
func (r *appointmentRepository) TxSource(tx *sqlx.Tx) scheduling.ScheduleSource {
	return &txScheduleSource{tx: tx, defaultSlotMinutes: r.defaultSlotMinutes}
}

type txScheduleSource struct {
	tx                 *sqlx.Tx
	defaultSlotMinutes int
}

func (s *txScheduleSource) BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]scheduling.Interval, error) {
	return selectBusyIntervals(ctx, s.tx, s.defaultSlotMinutes, doctorID, from, to, excludeID)
}

func (r *appointmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, scheduled_time, duration_minutes,
			status, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := tx.ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.ScheduledTime,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Reason,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translateError(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT * FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translateError(err))
	}
	return &appointment, nil
}

// GetForUpdate locks the row for the rest of the transaction.
func (r *appointmentRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT * FROM appointments WHERE id = $1 FOR UPDATE`

	var appointment model.Appointment
	if err := tx.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", translateError(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, patient_id = $2, scheduled_time = $3,
		    duration_minutes = $4, status = $5, reason = $6, updated_at = $7
		WHERE id = $8
	`

	appointment.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.ScheduledTime,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Reason,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update appointment: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", translateError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update appointment status: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentWithNames, int, error) {
	var where string
	switch filters.Scope {
	case model.ScopeHistory:
		where = " WHERE a.scheduled_time < NOW()"
	default:
		// Upcoming listings hide appointments of deactivated patients.
		where = " WHERE a.scheduled_time >= NOW() AND (a.patient_id IS NULL OR p.is_active = TRUE)"
	}

	args := []interface{}{}
	argCount := 1

	if filters.DoctorID != nil {
		where += fmt.Sprintf(" AND a.doctor_id = $%d", argCount)
		args = append(args, *filters.DoctorID)
		argCount++
	}
	if filters.PatientID != nil {
		where += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *filters.PatientID)
		argCount++
	}
	if filters.Status != "" {
		where += fmt.Sprintf(" AND a.status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if filters.Year > 0 {
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM a.scheduled_time AT TIME ZONE $%d)::int = $%d", argCount, argCount+1)
		args = append(args, r.timezone, filters.Year)
		argCount += 2
	}
	if filters.Month > 0 {
		where += fmt.Sprintf(" AND EXTRACT(MONTH FROM a.scheduled_time AT TIME ZONE $%d)::int = $%d", argCount, argCount+1)
		args = append(args, r.timezone, filters.Month)
		argCount += 2
	}
	if filters.DayStart != nil && filters.DayEnd != nil {
		where += fmt.Sprintf(" AND a.scheduled_time >= $%d AND a.scheduled_time < $%d", argCount, argCount+1)
		args = append(args, *filters.DayStart, *filters.DayEnd)
		argCount += 2
	}
	if filters.TimeHour != nil && filters.TimeMinute != nil {
		where += fmt.Sprintf(" AND EXTRACT(HOUR FROM a.scheduled_time AT TIME ZONE $%d)::int = $%d", argCount, argCount+1)
		args = append(args, r.timezone, *filters.TimeHour)
		argCount += 2
		where += fmt.Sprintf(" AND EXTRACT(MINUTE FROM a.scheduled_time AT TIME ZONE $%d)::int = $%d", argCount, argCount+1)
		args = append(args, r.timezone, *filters.TimeMinute)
		argCount += 2
	}
	if filters.Text != "" {
		where += fmt.Sprintf(` AND (p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR p.email ILIKE $%d
			OR d.first_name ILIKE $%d OR d.last_name ILIKE $%d
			OR a.reason ILIKE $%d OR a.status ILIKE $%d)`,
			argCount, argCount, argCount, argCount, argCount, argCount, argCount)
		args = append(args, "%"+filters.Text+"%")
		argCount++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, appointmentCountSelect+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	direction := "ASC"
	if filters.Order == "desc" {
		direction = "DESC"
	}

	query := appointmentWithNamesSelect + where +
		fmt.Sprintf(" ORDER BY a.scheduled_time %s LIMIT $%d OFFSET $%d", direction, argCount, argCount+1)
	args = append(args, filters.PageSize, filters.Offset())

	var appointments []*model.AppointmentWithNames
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

func (r *appointmentRepository) ListForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]*model.AppointmentWithNames, error) {
	query := appointmentWithNamesSelect + `
		WHERE a.scheduled_time >= $1 AND a.scheduled_time < $2
		ORDER BY a.scheduled_time ASC
	`

	var appointments []*model.AppointmentWithNames
	if err := r.db.SelectContext(ctx, &appointments, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("failed to list appointments for day: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListForCalendar(ctx context.Context, patientID *uuid.UUID, from, to *time.Time) ([]*model.AppointmentWithNames, error) {
	query := appointmentWithNamesSelect + " WHERE TRUE"
	args := []interface{}{}
	argCount := 1

	if patientID != nil {
		query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *patientID)
		argCount++
	}
	if from != nil {
		query += fmt.Sprintf(" AND a.scheduled_time >= $%d", argCount)
		args = append(args, *from)
		argCount++
	}
	if to != nil {
		query += fmt.Sprintf(" AND a.scheduled_time < $%d", argCount)
		args = append(args, *to)
		argCount++
	}
	query += " ORDER BY a.scheduled_time ASC"

	var appointments []*model.AppointmentWithNames
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list calendar appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListUpcoming(ctx context.Context, patientID *uuid.UUID, limit int) ([]*model.AppointmentWithNames, error) {
	query := appointmentWithNamesSelect + " WHERE a.scheduled_time >= NOW()"
	args := []interface{}{}
	argCount := 1

	if patientID != nil {
		query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *patientID)
		argCount++
	}
	query += fmt.Sprintf(" ORDER BY a.scheduled_time ASC LIMIT $%d", argCount)
	args = append(args, limit)

	var appointments []*model.AppointmentWithNames
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appointments, nil
}

// AvailableYears lists the distinct years, in clinic time, that have past
// appointments. Feeds the history year filter.
func (r *appointmentRepository) AvailableYears(ctx context.Context) ([]int, error) {
	query := `
		SELECT DISTINCT EXTRACT(YEAR FROM a.scheduled_time AT TIME ZONE $1)::int AS year
		FROM appointments a
		WHERE a.scheduled_time < NOW()
		ORDER BY year DESC
	`

	var years []int
	if err := r.db.SelectContext(ctx, &years, query, r.timezone); err != nil {
		return nil, fmt.Errorf("failed to list appointment years: %w", err)
	}
	return years, nil
}
