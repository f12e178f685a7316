package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/scheduling"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/metrics"
)

// User-facing rejection messages for the booking gate. The conflict message
// deliberately names no other appointment.
const (
	msgPastTime      = "Scheduled time must be in the future."
	msgSelectDoctor  = "Please select a doctor."
	msgSelectPatient = "Please select a patient."
	msgConflict      = "This doctor already has an appointment around that time. Please choose another slot."
	msgNoSlots       = "No available slots found."
	msgTerminal      = "Completed or cancelled appointments can no longer be changed."
	msgInvalidDate   = "Enter a valid date in YYYY-MM-DD format."
	msgInvalidTime   = "Enter a valid time in HH:MM format."
	msgNeedBothParts = "Provide both date and time to move an appointment."
)

// calendarUpcomingLimit caps the calendar page's upcoming sidebar.
const calendarUpcomingLimit = 30

// Search grammar: ISO date, day-first date, and an optional am/pm clock
// time. Anything that matches none of these is a free-text search.
var (
	isoDatePattern = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	euDatePattern  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	clockPattern   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s*(am|pm))?$`)
)

// Service owns the appointment lifecycle. Every create, edit and reschedule
// passes through the same conflict gate: the slot engine reading from the
// open transaction's snapshot, with the exclusion constraint as the
// storage-level backstop.
type Service struct {
	repo     repository.AppointmentRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	outbox   repository.OutboxRepository
	engine   *scheduling.Engine
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	engine *scheduling.Engine,
	auditor *audit.Service,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		users:    users,
		outbox:   outbox,
		engine:   engine,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}
}

// Create books a new appointment. Field validation happens up front; the
// conflict check and the insert share one serializable transaction so a
// concurrent booking cannot slip between them.
func (s *Service) Create(ctx context.Context, actor *model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	verrs := apperrors.NewValidationErrors()

	scheduledAt := s.combineDateTime(req.Date, req.Time, verrs)
	if !scheduledAt.IsZero() && !scheduledAt.After(time.Now()) {
		verrs.Add("scheduled_time", msgPastTime)
	}

	doctorID, err := s.resolveDoctor(ctx, req.DoctorID, verrs)
	if err != nil {
		return nil, err
	}
	patientID, err := s.resolvePatient(ctx, req.PatientID, verrs)
	if err != nil {
		return nil, err
	}
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	apt := &model.Appointment{
		DoctorID:        doctorID,
		PatientID:       &patientID,
		ScheduledTime:   scheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          model.AppointmentStatusScheduled,
		Reason:          req.Reason,
	}

	slotMinutes := s.engine.Config().SlotMinutes
	err = s.repo.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.rejectConflicts(ctx, tx, apt.DoctorID, apt.ScheduledTime, apt.EndTime(slotMinutes), nil); err != nil {
			return err
		}
		if err := s.repo.CreateTx(ctx, tx, apt); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return s.appendEvent(ctx, tx, model.EventAppointmentCreated, apt)
	})
	if err != nil {
		return nil, asBookingRejection(err, msgConflict)
	}

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID, "doctor_id", apt.DoctorID, "scheduled_time", apt.ScheduledTime)
	s.auditor.Record(ctx, actor, model.AuditActionCreate, model.AuditEntityAppointment, apt.ID, apt)
	return apt, nil
}

// Update edits an appointment in place. Only scheduled rows can change; the
// row is locked for the duration so a concurrent cancel cannot interleave,
// and any move of doctor, time or duration re-runs the conflict gate with
// the row itself excluded.
func (s *Service) Update(ctx context.Context, actor *model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	verrs := apperrors.NewValidationErrors()

	var newDoctorID *uuid.UUID
	if req.DoctorID != nil {
		doctorID, err := s.resolveDoctor(ctx, *req.DoctorID, verrs)
		if err != nil {
			return nil, err
		}
		if doctorID != uuid.Nil {
			newDoctorID = &doctorID
		}
	}

	var newPatientID *uuid.UUID
	if req.PatientID != nil {
		patientID, err := s.resolvePatient(ctx, *req.PatientID, verrs)
		if err != nil {
			return nil, err
		}
		if patientID != uuid.Nil {
			newPatientID = &patientID
		}
	}

	var newTime *time.Time
	if req.Date != nil || req.Time != nil {
		if req.Date == nil || req.Time == nil {
			verrs.AddNonField(msgNeedBothParts)
		} else if at := s.combineDateTime(*req.Date, *req.Time, verrs); !at.IsZero() {
			if !at.After(time.Now()) {
				verrs.Add("scheduled_time", msgPastTime)
			}
			newTime = &at
		}
	}

	var newStatus *model.AppointmentStatus
	if req.Status != nil {
		status := model.AppointmentStatus(*req.Status)
		if !status.Valid() {
			verrs.Add("status", "Select a valid status.")
		} else {
			newStatus = &status
		}
	}

	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	slotMinutes := s.engine.Config().SlotMinutes
	var updated *model.Appointment

	err := s.repo.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to get appointment: %w", err)
		}
		if current.Status.Terminal() {
			return terminalRejection()
		}

		next := *current
		if newDoctorID != nil {
			next.DoctorID = *newDoctorID
		}
		if newPatientID != nil {
			next.PatientID = newPatientID
		}
		if newTime != nil {
			next.ScheduledTime = *newTime
		}
		if req.DurationMinutes != nil {
			next.DurationMinutes = req.DurationMinutes
		}
		if req.Reason != nil {
			next.Reason = req.Reason
		}
		if newStatus != nil {
			if !current.Status.CanTransitionTo(*newStatus) {
				return terminalRejection()
			}
			next.Status = *newStatus
		}

		moved := next.DoctorID != current.DoctorID ||
			!next.ScheduledTime.Equal(current.ScheduledTime) ||
			next.Duration(slotMinutes) != current.Duration(slotMinutes)
		if moved && next.Status == model.AppointmentStatusScheduled {
			if err := s.rejectConflicts(ctx, tx, next.DoctorID, next.ScheduledTime, next.EndTime(slotMinutes), &next.ID); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateTx(ctx, tx, &next); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		updated = &next
		return s.appendEvent(ctx, tx, model.EventAppointmentUpdated, &next)
	})
	if err != nil {
		return nil, asBookingRejection(err, msgConflict)
	}

	s.auditor.Record(ctx, actor, model.AuditActionUpdate, model.AuditEntityAppointment, updated.ID, updated)
	return updated, nil
}

// Cancel is a soft delete: the row stays for history with status cancelled.
func (s *Service) Cancel(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, actor, id,
		model.AppointmentStatusCancelled, model.EventAppointmentCancelled, model.AuditActionCancel)
}

// Complete marks the visit as done.
func (s *Service) Complete(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, actor, id,
		model.AppointmentStatusCompleted, model.EventAppointmentCompleted, model.AuditActionComplete)
}

// transition moves an appointment into a terminal status under row lock, so
// two staff members racing each other get a clean first-wins outcome.
func (s *Service) transition(ctx context.Context, actor *model.Actor, id uuid.UUID, target model.AppointmentStatus, eventType, auditAction string) (*model.Appointment, error) {
	var apt *model.Appointment

	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to get appointment: %w", err)
		}
		if !current.Status.CanTransitionTo(target) {
			return terminalRejection()
		}
		if err := s.repo.UpdateStatusTx(ctx, tx, id, target); err != nil {
			return fmt.Errorf("failed to update appointment status: %w", err)
		}
		current.Status = target
		apt = current
		return s.appendEvent(ctx, tx, eventType, current)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actor, auditAction, model.AuditEntityAppointment, apt.ID, apt)
	return apt, nil
}

// Reschedule moves a scheduled appointment to the doctor's next open slot of
// the same duration, searching from one minute in the future. The search and
// the move share one serializable transaction: if a concurrent booking takes
// the found slot first, the retry searches again.
func (s *Service) Reschedule(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if err := s.authorizeReschedule(ctx, actor, apt); err != nil {
		return nil, err
	}

	slotMinutes := s.engine.Config().SlotMinutes
	duration := apt.Duration(slotMinutes)
	searchFrom := time.Now().Add(time.Minute)

	var moved *model.Appointment
	err = s.repo.WithSerializableTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to get appointment: %w", err)
		}
		if current.Status.Terminal() {
			return terminalRejection()
		}

		gate := s.engine.WithSource(s.repo.TxSource(tx))
		searchStart := time.Now()
		slot, err := gate.NextAvailableSlot(ctx, current.DoctorID, duration, searchFrom)
		s.metrics.SlotSearchLatency.Observe(time.Since(searchStart).Seconds())
		if errors.Is(err, scheduling.ErrNoSlotAvailable) {
			s.metrics.SlotSearches.WithLabelValues(metrics.OutcomeExhausted).Inc()
			rejection := apperrors.NewValidationErrors()
			rejection.AddNonField(msgNoSlots)
			return rejection
		}
		if err != nil {
			return fmt.Errorf("failed to search for a slot: %w", err)
		}
		s.metrics.SlotSearches.WithLabelValues(metrics.OutcomeFound).Inc()

		next := *current
		next.ScheduledTime = slot
		next.Status = model.AppointmentStatusScheduled
		if err := s.repo.UpdateTx(ctx, tx, &next); err != nil {
			return fmt.Errorf("failed to move appointment: %w", err)
		}
		moved = &next
		return s.appendEvent(ctx, tx, model.EventAppointmentRescheduled, &next)
	})
	if err != nil {
		return nil, asBookingRejection(err, msgNoSlots)
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", moved.ID, "scheduled_time", moved.ScheduledTime)
	s.auditor.Record(ctx, actor, model.AuditActionReschedule, model.AuditEntityAppointment, moved.ID, moved)
	return moved, nil
}

// Get returns one appointment, scoped the same way the listings are: staff
// see any, doctors their own, patients their own.
func (s *Service) Get(ctx context.Context, actor *model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if err := s.authorizeView(ctx, actor, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

// List returns upcoming appointments, soonest first by default.
func (s *Service) List(ctx context.Context, actor *model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentWithNames, int, error) {
	return s.list(ctx, actor, filters, model.ScopeUpcoming, "asc", false)
}

// History returns past appointments, most recent first by default. Unlike
// the upcoming list its search also understands clock times ("14:30",
// "2:30pm").
func (s *Service) History(ctx context.Context, actor *model.Actor, filters *model.AppointmentFilters) ([]*model.AppointmentWithNames, int, error) {
	return s.list(ctx, actor, filters, model.ScopeHistory, "desc", true)
}

func (s *Service) list(ctx context.Context, actor *model.Actor, filters *model.AppointmentFilters, scope model.AppointmentScope, defaultOrder string, clockTimes bool) ([]*model.AppointmentWithNames, int, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	filters.Scope = scope
	if filters.Order == "" {
		filters.Order = defaultOrder
	}
	filters.Normalize()

	visible, err := s.applyActorScope(ctx, actor, filters)
	if err != nil {
		return nil, 0, err
	}
	if !visible {
		return []*model.AppointmentWithNames{}, 0, nil
	}

	loc := s.engine.Config().Location
	s.applyDateFilter(filters, loc)
	parseSearch(filters, loc, clockTimes)

	appointments, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, total, nil
}

// Day returns every appointment of one calendar day in the clinic timezone,
// defaulting to today.
func (s *Service) Day(ctx context.Context, dateStr string) ([]*model.AppointmentWithNames, time.Time, error) {
	loc := s.engine.Config().Location

	day := time.Now().In(loc)
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateStr), loc)
		if err != nil {
			rejection := apperrors.NewValidationErrors()
			rejection.Add("date", msgInvalidDate)
			return nil, time.Time{}, rejection
		}
		day = parsed
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appointments, err := s.repo.ListForDay(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to list day appointments: %w", err)
	}
	return appointments, dayStart, nil
}

// Calendar returns the JSON event feed. Patients see their own events only;
// from/to narrow the window when the calendar widget sends a range.
func (s *Service) Calendar(ctx context.Context, actor *model.Actor, fromStr, toStr string) ([]*model.CalendarEvent, error) {
	patientID, visible, err := s.actorPatientID(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []*model.CalendarEvent{}, nil
	}

	verrs := apperrors.NewValidationErrors()
	from := parseCalendarBound(fromStr, "from", s.engine.Config().Location, verrs)
	to := parseCalendarBound(toStr, "to", s.engine.Config().Location, verrs)
	if err := verrs.ErrIfAny(); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListForCalendar(ctx, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	slotMinutes := s.engine.Config().SlotMinutes
	events := make([]*model.CalendarEvent, 0, len(rows))
	for _, apt := range rows {
		title := "Appointment"
		if apt.PatientName != nil && strings.TrimSpace(*apt.PatientName) != "" {
			title = strings.TrimSpace(*apt.PatientName)
		}
		events = append(events, &model.CalendarEvent{
			ID:    apt.ID,
			Title: title,
			Start: apt.ScheduledTime,
			End:   apt.EndTime(slotMinutes),
			Color: model.CalendarColor(apt.Status),
		})
	}
	return events, nil
}

// Upcoming returns the calendar page's sidebar list: the next appointments
// from now, soonest first.
func (s *Service) Upcoming(ctx context.Context, actor *model.Actor, limit int) ([]*model.AppointmentWithNames, error) {
	if limit <= 0 || limit > calendarUpcomingLimit {
		limit = calendarUpcomingLimit
	}

	patientID, visible, err := s.actorPatientID(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []*model.AppointmentWithNames{}, nil
	}

	appointments, err := s.repo.ListUpcoming(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appointments, nil
}

// AvailableYears feeds the history screen's year dropdown.
func (s *Service) AvailableYears(ctx context.Context) ([]int, error) {
	years, err := s.repo.AvailableYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment years: %w", err)
	}
	return years, nil
}

// rejectConflicts runs the conflict gate against the transaction's snapshot
// and counts the outcome.
func (s *Service) rejectConflicts(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) error {
	gate := s.engine.WithSource(s.repo.TxSource(tx))
	clash, err := gate.HasConflict(ctx, doctorID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	if clash {
		s.metrics.ConflictChecks.WithLabelValues(metrics.ResultConflict).Inc()
		return conflictRejection(msgConflict)
	}
	s.metrics.ConflictChecks.WithLabelValues(metrics.ResultClear).Inc()
	return nil
}

// appendEvent writes the outbox row inside the caller's transaction so the
// event becomes visible if and only if the booking change commits.
func (s *Service) appendEvent(ctx context.Context, tx *sqlx.Tx, eventType string, apt *model.Appointment) error {
	payload, err := json.Marshal(apt)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := s.outbox.CreateTx(ctx, tx, &model.OutboxEvent{EventType: eventType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

// combineDateTime joins split date and time inputs into one instant in the
// clinic timezone. Inputs are naive by construction; localization happens
// exactly once, here.
func (s *Service) combineDateTime(dateStr, timeStr string, verrs *apperrors.ValidationErrors) time.Time {
	loc := s.engine.Config().Location

	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(dateStr), loc)
	if err != nil {
		verrs.Add("date", msgInvalidDate)
		return time.Time{}
	}

	raw := strings.TrimSpace(timeStr)
	clock, err := time.ParseInLocation("15:04:05", raw, loc)
	if err != nil {
		clock, err = time.ParseInLocation("15:04", raw, loc)
	}
	if err != nil {
		verrs.Add("time", msgInvalidTime)
		return time.Time{}
	}

	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
}

// resolveDoctor confirms the reference points at an active doctor account.
func (s *Service) resolveDoctor(ctx context.Context, raw string, verrs *apperrors.ValidationErrors) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		verrs.Add("doctor_id", msgSelectDoctor)
		return uuid.Nil, nil
	}

	doctor, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		verrs.Add("doctor_id", msgSelectDoctor)
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve doctor: %w", err)
	}
	if doctor.Role != model.RoleDoctor || !doctor.IsActive {
		verrs.Add("doctor_id", msgSelectDoctor)
		return uuid.Nil, nil
	}
	return id, nil
}

// resolvePatient confirms the reference points at an active patient record.
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
		return uuid.Nil, fmt.Errorf("failed to resolve patient: %w", err)
	}
	if !patient.IsActive {
		verrs.Add("patient_id", msgSelectPatient)
		return uuid.Nil, nil
	}
	return id, nil
}

// applyActorScope narrows a listing to what the actor may see. The boolean
// is false when a patient-role login has no patient record yet; such an
// actor sees nothing rather than everything.
func (s *Service) applyActorScope(ctx context.Context, actor *model.Actor, filters *model.AppointmentFilters) (bool, error) {
	if actor == nil {
		return true, nil
	}
	switch actor.Role {
	case model.RoleDoctor:
		doctorID := actor.ID
		filters.DoctorID = &doctorID
	case model.RolePatient:
		patientID, visible, err := s.actorPatientID(ctx, actor)
		if err != nil || !visible {
			return false, err
		}
		filters.PatientID = patientID
	case model.RoleAdmin, model.RoleReceptionist:
	}
	return true, nil
}

// actorPatientID resolves a patient-role actor to their patient record by
// email. Staff actors resolve to nil (unscoped).
func (s *Service) actorPatientID(ctx context.Context, actor *model.Actor) (*uuid.UUID, bool, error) {
	if actor == nil || actor.Role != model.RolePatient {
		return nil, true, nil
	}
	patient, err := s.patients.GetByEmail(ctx, actor.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve patient record: %w", err)
	}
	return &patient.ID, true, nil
}

// authorizeReschedule mirrors the view scoping: staff may reschedule any
// appointment, a doctor their own, a patient their own.
func (s *Service) authorizeReschedule(ctx context.Context, actor *model.Actor, apt *model.Appointment) error {
	return s.authorize(ctx, actor, apt, "not authorized to reschedule this appointment")
}

func (s *Service) authorizeView(ctx context.Context, actor *model.Actor, apt *model.Appointment) error {
	return s.authorize(ctx, actor, apt, "not authorized to view this appointment")
}

func (s *Service) authorize(ctx context.Context, actor *model.Actor, apt *model.Appointment, denial string) error {
	if actor == nil {
		return nil
	}
	switch actor.Role {
	case model.RoleAdmin, model.RoleReceptionist:
		return nil
	case model.RoleDoctor:
		if apt.DoctorID == actor.ID {
			return nil
		}
	case model.RolePatient:
		patientID, visible, err := s.actorPatientID(ctx, actor)
		if err != nil {
			return err
		}
		if visible && apt.PatientID != nil && *apt.PatientID == *patientID {
			return nil
		}
	}
	return apperrors.NewForbidden(denial)
}

// applyDateFilter turns the explicit ?date= parameter into a day window.
// Malformed values are ignored, matching the screens this feeds.
func (s *Service) applyDateFilter(filters *model.AppointmentFilters, loc *time.Location) {
	if filters.Date == "" || filters.DayStart != nil {
		return
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(filters.Date), loc)
	if err != nil {
		return
	}
	end := day.AddDate(0, 0, 1)
	filters.DayStart = &day
	filters.DayEnd = &end
}

// parseSearch classifies the free-text query: status keywords first, then
// exact dates (ISO or day-first), then, when clockTimes is set, a wall-clock
// time, and otherwise a name/reason/status substring search.
func parseSearch(filters *model.AppointmentFilters, loc *time.Location, clockTimes bool) {
	q := strings.TrimSpace(filters.SearchTerm)
	if q == "" {
		return
	}
	lower := strings.ToLower(q)

	switch {
	case strings.Contains(lower, "scheduled"):
		filters.Status = model.AppointmentStatusScheduled
		return
	case strings.Contains(lower, "completed"):
		filters.Status = model.AppointmentStatusCompleted
		return
	case strings.Contains(lower, "cancelled"), strings.Contains(lower, "canceled"):
		filters.Status = model.AppointmentStatusCancelled
		return
	}

	if day, ok := parseSearchDate(q, loc); ok {
		end := day.AddDate(0, 0, 1)
		filters.DayStart = &day
		filters.DayEnd = &end
		return
	}

	if clockTimes {
		if m := clockPattern.FindStringSubmatch(lower); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute, _ := strconv.Atoi(m[2])
			switch m[3] {
			case "pm":
				if hour < 12 {
					hour += 12
				}
			case "am":
				if hour == 12 {
					hour = 0
				}
			}
			if hour < 24 && minute < 60 {
				filters.TimeHour = &hour
				filters.TimeMinute = &minute
				return
			}
		}
	}

	filters.Text = q
}

// parseSearchDate accepts YYYY-MM-DD and DD-MM-YYYY (slashes too) and
// rejects values that only normalize into a real date.
func parseSearchDate(q string, loc *time.Location) (time.Time, bool) {
	var year, month, day int
	if m := isoDatePattern.FindStringSubmatch(q); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else if m := euDatePattern.FindStringSubmatch(q); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		return time.Time{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// parseCalendarBound accepts RFC 3339 instants or bare dates.
func parseCalendarBound(raw, field string, loc *time.Location, verrs *apperrors.ValidationErrors) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return &at
	}
	if at, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return &at
	}
	verrs.Add(field, "Enter an RFC 3339 timestamp or a YYYY-MM-DD date.")
	return nil
}

// conflictRejection is the single user-facing booking conflict outcome.
func conflictRejection(message string) *apperrors.ValidationErrors {
	rejection := apperrors.NewValidationErrors()
	rejection.AddNonField(message)
	return rejection
}

func terminalRejection() *apperrors.ValidationErrors {
	rejection := apperrors.NewValidationErrors()
	rejection.AddNonField(msgTerminal)
	return rejection
}

// asBookingRejection passes validation outcomes through untouched and folds
// the storage-level conflict signals (exclusion constraint, exhausted
// serialization retries) into the same user-facing rejection.
func asBookingRejection(err error, message string) error {
	var rejection *apperrors.ValidationErrors
	if errors.As(err, &rejection) {
		return rejection
	}
	if errors.Is(err, repository.ErrOverlap) || errors.Is(err, repository.ErrSerialization) {
		return conflictRejection(message)
	}
	return err
}
