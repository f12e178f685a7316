package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
// Completed and cancelled rows stay queryable but can only be corrected by
// creating a new appointment.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	case AppointmentStatusScheduled:
		return false
	default:
		return false
	}
}

// CanTransitionTo encodes the appointment state machine: scheduled may move
// to completed or cancelled (or stay scheduled through edits/reschedules);
// terminal states never move again.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	return true
}

// Appointment is a booked slot on one doctor's calendar. PatientID is nil
// when the patient record has been removed; the appointment row itself is
// never deleted, only cancelled.
type Appointment struct {
	Base
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID       *uuid.UUID        `db:"patient_id" json:"patient_id,omitempty"`
	ScheduledTime   time.Time         `db:"scheduled_time" json:"scheduled_time"`
	DurationMinutes *int              `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Reason          *string           `db:"reason" json:"reason,omitempty"`
}

// EndTime returns the exclusive end of the appointment's interval, falling
// back to defaultMinutes when no explicit duration is stored.
func (a *Appointment) EndTime(defaultMinutes int) time.Time {
	return a.ScheduledTime.Add(time.Duration(a.Duration(defaultMinutes)) * time.Minute)
}

// Duration returns the stored duration or defaultMinutes when absent or
// non-positive.
func (a *Appointment) Duration(defaultMinutes int) int {
	if a.DurationMinutes != nil && *a.DurationMinutes > 0 {
		return *a.DurationMinutes
	}
	return defaultMinutes
}

// AppointmentWithNames is the listing projection joined with doctor and
// patient names.
type AppointmentWithNames struct {
	Appointment
	DoctorName  string  `db:"doctor_name" json:"doctor_name"`
	PatientName *string `db:"patient_name" json:"patient_name,omitempty"`
}

type CreateAppointmentRequest struct {
	DoctorID        string  `json:"doctor_id" binding:"required,uuid"`
	PatientID       string  `json:"patient_id" binding:"required,uuid"`
	Date            string  `json:"date" binding:"required"`
	Time            string  `json:"time" binding:"required"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Reason          *string `json:"reason"`
}

type UpdateAppointmentRequest struct {
	DoctorID        *string `json:"doctor_id" binding:"omitempty,uuid"`
	PatientID       *string `json:"patient_id" binding:"omitempty,uuid"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	DurationMinutes *int    `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Reason          *string `json:"reason"`
	Status          *string `json:"status" binding:"omitempty,oneof=scheduled completed cancelled"`
}

// AppointmentScope selects between upcoming and past listings.
type AppointmentScope string

const (
	ScopeUpcoming AppointmentScope = "upcoming"
	ScopeHistory  AppointmentScope = "history"
)

// AppointmentFilters narrows appointment listings. SearchTerm is parsed by
// the service into the structured fields below (status keyword, date, time of
// day or free text); the repository consumes only the structured ones.
type AppointmentFilters struct {
	Scope      AppointmentScope `form:"-"`
	DoctorID   *uuid.UUID       `form:"-"`
	PatientID  *uuid.UUID       `form:"-"`
	SearchTerm string           `form:"q"`
	Year       int              `form:"year"`
	Month      int              `form:"month"`
	Date       string           `form:"date"`
	Order      string           `form:"order"`
	Pagination

	// Parsed search refinements; not bound from the request.
	Status     AppointmentStatus `form:"-"`
	DayStart   *time.Time        `form:"-"`
	DayEnd     *time.Time        `form:"-"`
	TimeHour   *int              `form:"-"`
	TimeMinute *int              `form:"-"`
	Text       string            `form:"-"`
}

// CalendarEvent is one entry of the calendar JSON feed.
type CalendarEvent struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Color string    `json:"color"`
}

// Calendar feed colors per status.
const (
	calendarColorScheduled = "#fbbf24"
	calendarColorCompleted = "#10b981"
	calendarColorCancelled = "#ef4444"
	calendarColorDefault   = "#64748b"
)

// CalendarColor maps a status to its feed color.
func CalendarColor(s AppointmentStatus) string {
	switch s {
	case AppointmentStatusScheduled:
		return calendarColorScheduled
	case AppointmentStatusCompleted:
		return calendarColorCompleted
	case AppointmentStatusCancelled:
		return calendarColorCancelled
	default:
		return calendarColorDefault
	}
}
