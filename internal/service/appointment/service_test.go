package appointment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/scheduling"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
	"github.com/clinovia/clinic-api/pkg/metrics"
)

// fakeSchedule is an in-memory AppointmentRepository. Transactions degrade
// to plain closure calls; the nil tx token is never dereferenced because the
// fake's Tx methods ignore it.
type fakeSchedule struct {
	rows        map[uuid.UUID]*model.Appointment
	slotMinutes int

	// exhaustRetries makes every serializable transaction give up the way
	// the real one does after repeated aborts.
	exhaustRetries bool

	listRows    []*model.AppointmentWithNames
	listCalls   int
	lastFilters *model.AppointmentFilters

	lastDayStart time.Time
	lastDayEnd   time.Time

	lastCalendarPatient *uuid.UUID
	lastUpcomingPatient *uuid.UUID
	lastUpcomingLimit   int

	years []int
}

func newFakeSchedule(slotMinutes int) *fakeSchedule {
	return &fakeSchedule{rows: make(map[uuid.UUID]*model.Appointment), slotMinutes: slotMinutes}
}

func (f *fakeSchedule) BusyIntervals(_ context.Context, doctorID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]scheduling.Interval, error) {
	var busy []scheduling.Interval
	for _, apt := range f.rows {
		if apt.DoctorID != doctorID || apt.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		start, end := apt.ScheduledTime, apt.EndTime(f.slotMinutes)
		if end.After(from) && start.Before(to) {
			busy = append(busy, scheduling.Interval{Start: start, End: end})
		}
	}
	return busy, nil
}

func (f *fakeSchedule) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (f *fakeSchedule) WithSerializableTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if f.exhaustRetries {
		return fmt.Errorf("%w: %w", repository.ErrSerialization, errors.New("could not serialize access"))
	}
	return fn(nil)
}

func (f *fakeSchedule) TxSource(_ *sqlx.Tx) scheduling.ScheduleSource {
	return f
}

func (f *fakeSchedule) CreateTx(_ context.Context, _ *sqlx.Tx, apt *model.Appointment) error {
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	now := time.Now()
	apt.CreatedAt = now
	apt.UpdatedAt = now
	cp := *apt
	f.rows[apt.ID] = &cp
	return nil
}

func (f *fakeSchedule) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get appointment: %w", repository.ErrNotFound)
	}
	cp := *apt
	return &cp, nil
}

func (f *fakeSchedule) GetForUpdate(ctx context.Context, _ *sqlx.Tx, id uuid.UUID) (*model.Appointment, error) {
	return f.Get(ctx, id)
}

func (f *fakeSchedule) UpdateTx(_ context.Context, _ *sqlx.Tx, apt *model.Appointment) error {
	if _, ok := f.rows[apt.ID]; !ok {
		return fmt.Errorf("failed to update appointment: %w", repository.ErrNotFound)
	}
	apt.UpdatedAt = time.Now()
	cp := *apt
	f.rows[apt.ID] = &cp
	return nil
}

func (f *fakeSchedule) UpdateStatusTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error {
	apt, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("failed to update appointment status: %w", repository.ErrNotFound)
	}
	apt.Status = status
	apt.UpdatedAt = time.Now()
	return nil
}

func (f *fakeSchedule) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentWithNames, int, error) {
	f.listCalls++
	f.lastFilters = filters
	return f.listRows, len(f.listRows), nil
}

func (f *fakeSchedule) ListForDay(_ context.Context, dayStart, dayEnd time.Time) ([]*model.AppointmentWithNames, error) {
	f.lastDayStart = dayStart
	f.lastDayEnd = dayEnd
	return f.listRows, nil
}

func (f *fakeSchedule) ListForCalendar(_ context.Context, patientID *uuid.UUID, _, _ *time.Time) ([]*model.AppointmentWithNames, error) {
	f.lastCalendarPatient = patientID
	return f.listRows, nil
}

func (f *fakeSchedule) ListUpcoming(_ context.Context, patientID *uuid.UUID, limit int) ([]*model.AppointmentWithNames, error) {
	f.lastUpcomingPatient = patientID
	f.lastUpcomingLimit = limit
	return f.listRows, nil
}

func (f *fakeSchedule) AvailableYears(_ context.Context) ([]int, error) {
	return f.years, nil
}

type fakePatientStore struct {
	rows map[uuid.UUID]*model.Patient
}

func newFakePatientStore() *fakePatientStore {
	return &fakePatientStore{rows: make(map[uuid.UUID]*model.Patient)}
}

func (f *fakePatientStore) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (f *fakePatientStore) CreateTx(_ context.Context, _ *sqlx.Tx, patient *model.Patient) error {
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	cp := *patient
	f.rows[patient.ID] = &cp
	return nil
}

func (f *fakePatientStore) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get patient: %w", repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakePatientStore) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	for _, p := range f.rows {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("failed to get patient by email: %w", repository.ErrNotFound)
}

func (f *fakePatientStore) UpdateTx(_ context.Context, _ *sqlx.Tx, patient *model.Patient) error {
	cp := *patient
	f.rows[patient.ID] = &cp
	return nil
}

func (f *fakePatientStore) DeactivateTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID) error {
	p, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("failed to deactivate patient: %w", repository.ErrNotFound)
	}
	p.IsActive = false
	return nil
}

func (f *fakePatientStore) List(_ context.Context, _ *model.PatientFilters) ([]*model.Patient, int, error) {
	return nil, 0, nil
}

func (f *fakePatientStore) EmailExists(_ context.Context, _ string, _ *uuid.UUID) (bool, error) {
	return false, nil
}

type fakeUserStore struct {
	rows map[uuid.UUID]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{rows: make(map[uuid.UUID]*model.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	f.rows[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.rows {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("failed to get user by email: %w", repository.ErrNotFound)
}

func (f *fakeUserStore) Update(_ context.Context, user *model.User) error {
	cp := *user
	f.rows[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (f *fakeUserStore) UpdateLastLogin(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (f *fakeUserStore) Deactivate(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeUserStore) List(_ context.Context, _ model.Role, _ model.Pagination) ([]*model.User, int, error) {
	return nil, 0, nil
}

func (f *fakeUserStore) ListDoctors(_ context.Context, _ *model.DoctorFilters) ([]*model.Doctor, int, error) {
	return nil, 0, nil
}

func (f *fakeUserStore) EmailExists(_ context.Context, _ string, _ *uuid.UUID) (bool, error) {
	return false, nil
}

type fakeOutboxStore struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxStore) Create(ctx context.Context, event *model.OutboxEvent) error {
	return f.CreateTx(ctx, nil, event)
}

func (f *fakeOutboxStore) CreateTx(_ context.Context, _ *sqlx.Tx, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxStore) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeOutboxStore) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutboxStore) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxStore) eventTypes() []string {
	types := make([]string, len(f.events))
	for i, e := range f.events {
		types[i] = e.EventType
	}
	return types
}

type fakeAuditStore struct {
	entries []*model.AuditLog
}

func (f *fakeAuditStore) Create(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ *model.AuditFilters) ([]*model.AuditLog, int, error) {
	return f.entries, len(f.entries), nil
}

func (f *fakeAuditStore) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc      *Service
	schedule *fakeSchedule
	patients *fakePatientStore
	users    *fakeUserStore
	outbox   *fakeOutboxStore
	auditLog *fakeAuditStore
	doctor   *model.User
	patient  *model.Patient
}

// newFixture builds the service on in-memory stores with an every-day
// working window, so slot searches behave the same whichever day the tests
// run.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := scheduling.DefaultConfig(time.UTC)
	cfg.WorkDays[time.Saturday] = true
	cfg.WorkDays[time.Sunday] = true
	return newFixtureWithConfig(t, cfg)
}

func newFixtureWithConfig(t *testing.T, cfg scheduling.Config) *fixture {
	t.Helper()

	schedule := newFakeSchedule(cfg.SlotMinutes)
	engine, err := scheduling.NewEngine(cfg, schedule)
	require.NoError(t, err)

	patients := newFakePatientStore()
	users := newFakeUserStore()
	outbox := &fakeOutboxStore{}
	auditLog := &fakeAuditStore{}

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	auditor := audit.NewService(auditLog, log)
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry(), "clinic", "test")

	f := &fixture{
		svc:      NewService(schedule, patients, users, outbox, engine, auditor, m, log),
		schedule: schedule,
		patients: patients,
		users:    users,
		outbox:   outbox,
		auditLog: auditLog,
	}

	f.doctor = &model.User{
		Email:     "g.house@clinic.test",
		FirstName: "Gregory",
		LastName:  "House",
		Role:      model.RoleDoctor,
		IsActive:  true,
	}
	require.NoError(t, users.Create(context.Background(), f.doctor))

	f.patient = &model.Patient{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     "ana.lopez@example.test",
		IsActive:  true,
	}
	require.NoError(t, patients.CreateTx(context.Background(), nil, f.patient))

	return f
}

// seedAppointment stores a row directly, bypassing the gate.
func (f *fixture) seedAppointment(t *testing.T, at time.Time, minutes int, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	apt := &model.Appointment{
		DoctorID:        f.doctor.ID,
		PatientID:       &f.patient.ID,
		ScheduledTime:   at,
		DurationMinutes: &minutes,
		Status:          status,
	}
	require.NoError(t, f.schedule.CreateTx(context.Background(), nil, apt))
	return apt
}

func (f *fixture) staff() *model.Actor {
	return &model.Actor{ID: uuid.New(), Email: "desk@clinic.test", Role: model.RoleReceptionist}
}

// futureDay returns midnight UTC of a day comfortably in the future.
func futureDay(days int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func createReq(f *fixture, day time.Time, clock string, minutes *int) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		DoctorID:        f.doctor.ID.String(),
		PatientID:       f.patient.ID.String(),
		Date:            day.Format("2006-01-02"),
		Time:            clock,
		DurationMinutes: minutes,
	}
}

func requireValidation(t *testing.T, err error) *apperrors.ValidationErrors {
	t.Helper()
	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	return verrs
}

func TestCreateBooksOpenSlot(t *testing.T) {
	f := newFixture(t)

	apt, err := f.svc.Create(context.Background(), f.staff(), createReq(f, futureDay(2), "10:00", intPtr(30)))
	require.NoError(t, err)

	day := futureDay(2)
	want := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	assert.True(t, apt.ScheduledTime.Equal(want))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.NotEqual(t, uuid.Nil, apt.ID)
	assert.Equal(t, []string{model.EventAppointmentCreated}, f.outbox.eventTypes())
	assert.Len(t, f.auditLog.entries, 1)
}

func TestCreateRejectsPastTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, futureDay(-1), "10:00", nil))

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields["scheduled_time"], msgPastTime)
	assert.Empty(t, f.schedule.rows)
	assert.Empty(t, f.outbox.events)
}

func TestCreateCollectsFieldErrors(t *testing.T) {
	f := newFixture(t)

	req := createReq(f, futureDay(-1), "not-a-time", nil)
	req.DoctorID = uuid.New().String()
	req.PatientID = uuid.New().String()

	_, err := f.svc.Create(context.Background(), f.staff(), req)

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields["time"], msgInvalidTime)
	assert.Contains(t, verrs.Fields["doctor_id"], msgSelectDoctor)
	assert.Contains(t, verrs.Fields["patient_id"], msgSelectPatient)
}

func TestCreateRejectsInactiveDoctor(t *testing.T) {
	f := newFixture(t)
	f.doctor.IsActive = false
	require.NoError(t, f.users.Update(context.Background(), f.doctor))

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, futureDay(2), "10:00", nil))

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields["doctor_id"], msgSelectDoctor)
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, day, "10:15", intPtr(30)))

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgConflict)
	assert.Len(t, f.schedule.rows, 1)
	assert.Empty(t, f.outbox.events)
}

func TestCreateAllowsTouchingAppointments(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	apt, err := f.svc.Create(context.Background(), f.staff(), createReq(f, day, "10:30", intPtr(30)))

	require.NoError(t, err)
	assert.Equal(t, 10, apt.ScheduledTime.Hour())
	assert.Equal(t, 30, apt.ScheduledTime.Minute())
	assert.Len(t, f.schedule.rows, 2)
}

func TestCreateIgnoresCancelledWhenChecking(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusCancelled)

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, day, "10:00", intPtr(30)))

	require.NoError(t, err)
}

// A 30-minute gap takes a 30-minute visit but not a 60-minute one.
func TestCreateRejectsVisitLongerThanGap(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	f.seedAppointment(t, day.Add(9*time.Hour), 30, model.AppointmentStatusScheduled)
	f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, day, "09:30", intPtr(60)))
	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgConflict)

	_, err = f.svc.Create(context.Background(), f.staff(), createReq(f, day, "09:30", intPtr(30)))
	require.NoError(t, err)
}

func TestCreateConflictWhenRetriesExhausted(t *testing.T) {
	f := newFixture(t)
	f.schedule.exhaustRetries = true

	_, err := f.svc.Create(context.Background(), f.staff(), createReq(f, futureDay(2), "10:00", nil))

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgConflict)
	assert.Empty(t, f.schedule.rows)
}

func TestUpdateKeepsSlotWhenOnlyReasonChanges(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	updated, err := f.svc.Update(context.Background(), f.staff(), apt.ID, &model.UpdateAppointmentRequest{
		Reason: strPtr("follow-up"),
	})

	require.NoError(t, err)
	assert.True(t, updated.ScheduledTime.Equal(apt.ScheduledTime))
	require.NotNil(t, updated.Reason)
	assert.Equal(t, "follow-up", *updated.Reason)
	assert.Equal(t, []string{model.EventAppointmentUpdated}, f.outbox.eventTypes())
}

// Moving an appointment into its own old interval must not count as a
// conflict.
func TestUpdateExcludesOwnInterval(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	apt := f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	date := day.Format("2006-01-02")
	updated, err := f.svc.Update(context.Background(), f.staff(), apt.ID, &model.UpdateAppointmentRequest{
		Date: &date,
		Time: strPtr("10:15"),
	})

	require.NoError(t, err)
	assert.Equal(t, 15, updated.ScheduledTime.Minute())
}

func TestUpdateRejectsOverlapWithOtherAppointment(t *testing.T) {
	f := newFixture(t)
	day := futureDay(2)
	f.seedAppointment(t, day.Add(10*time.Hour), 30, model.AppointmentStatusScheduled)
	other := f.seedAppointment(t, day.Add(11*time.Hour), 30, model.AppointmentStatusScheduled)

	date := day.Format("2006-01-02")
	_, err := f.svc.Update(context.Background(), f.staff(), other.ID, &model.UpdateAppointmentRequest{
		Date: &date,
		Time: strPtr("10:15"),
	})

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgConflict)
	kept, getErr := f.schedule.Get(context.Background(), other.ID)
	require.NoError(t, getErr)
	assert.True(t, kept.ScheduledTime.Equal(other.ScheduledTime))
}

func TestUpdateNeedsDateAndTimeTogether(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	date := futureDay(3).Format("2006-01-02")
	_, err := f.svc.Update(context.Background(), f.staff(), apt.ID, &model.UpdateAppointmentRequest{
		Date: &date,
	})

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgNeedBothParts)
}

func TestUpdateRejectsTerminalAppointment(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusCancelled)

	_, err := f.svc.Update(context.Background(), f.staff(), apt.ID, &model.UpdateAppointmentRequest{
		Reason: strPtr("attempted edit"),
	})

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgTerminal)
}

func TestCancelThenCancelAgainRejected(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	cancelled, err := f.svc.Cancel(context.Background(), f.staff(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), f.staff(), apt.ID)
	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgTerminal)

	assert.Equal(t, []string{model.EventAppointmentCancelled}, f.outbox.eventTypes())
	kept, getErr := f.schedule.Get(context.Background(), apt.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.AppointmentStatusCancelled, kept.Status)
}

func TestCompleteThenCancelRejected(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	done, err := f.svc.Complete(context.Background(), f.staff(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.Cancel(context.Background(), f.staff(), apt.ID)
	requireValidation(t, err)

	kept, getErr := f.schedule.Get(context.Background(), apt.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.AppointmentStatusCompleted, kept.Status)
}

func TestRescheduleMovesIntoWorkingWindow(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(-2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	moved, err := f.svc.Reschedule(context.Background(), f.staff(), apt.ID)
	require.NoError(t, err)

	assert.True(t, moved.ScheduledTime.After(time.Now()))
	hour := moved.ScheduledTime.In(time.UTC).Hour()
	assert.GreaterOrEqual(t, hour, 9)
	assert.Less(t, hour, 17)
	assert.Equal(t, model.AppointmentStatusScheduled, moved.Status)
	assert.Equal(t, apt.DoctorID, moved.DoctorID)
	require.NotNil(t, moved.DurationMinutes)
	assert.Equal(t, 30, *moved.DurationMinutes)
	assert.Equal(t, []string{model.EventAppointmentRescheduled}, f.outbox.eventTypes())
}

func TestRescheduleRejectsCancelledAppointment(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(-2).Add(10*time.Hour), 30, model.AppointmentStatusCancelled)

	_, err := f.svc.Reschedule(context.Background(), f.staff(), apt.ID)

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgTerminal)
	kept, getErr := f.schedule.Get(context.Background(), apt.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.AppointmentStatusCancelled, kept.Status)
}

func TestRescheduleReportsWhenHorizonIsFull(t *testing.T) {
	cfg := scheduling.Config{
		SlotMinutes:     60,
		WorkStartHour:   9,
		WorkEndHour:     10,
		SearchDaysAhead: 2,
		Location:        time.UTC,
		WorkDays: map[time.Weekday]bool{
			time.Sunday: true, time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true, time.Saturday: true,
		},
	}
	f := newFixtureWithConfig(t, cfg)

	apt := f.seedAppointment(t, futureDay(0).Add(9*time.Hour), 60, model.AppointmentStatusScheduled)
	for days := 1; days <= 4; days++ {
		f.seedAppointment(t, futureDay(days).Add(9*time.Hour), 60, model.AppointmentStatusScheduled)
	}

	_, err := f.svc.Reschedule(context.Background(), f.staff(), apt.ID)

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgNoSlots)
	kept, getErr := f.schedule.Get(context.Background(), apt.ID)
	require.NoError(t, getErr)
	assert.True(t, kept.ScheduledTime.Equal(apt.ScheduledTime))
	assert.Empty(t, f.outbox.events)
}

func TestRescheduleForbiddenForOtherDoctor(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	otherDoctor := &model.Actor{ID: uuid.New(), Email: "other@clinic.test", Role: model.RoleDoctor}
	_, err := f.svc.Reschedule(context.Background(), otherDoctor, apt.ID)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestGetScopesPatientToOwnAppointments(t *testing.T) {
	f := newFixture(t)
	own := f.seedAppointment(t, futureDay(2).Add(10*time.Hour), 30, model.AppointmentStatusScheduled)

	stranger := &model.Patient{FirstName: "Ben", LastName: "Okafor", Email: "ben@example.test", IsActive: true}
	require.NoError(t, f.patients.CreateTx(context.Background(), nil, stranger))
	foreign := &model.Appointment{
		DoctorID:      f.doctor.ID,
		PatientID:     &stranger.ID,
		ScheduledTime: futureDay(2).Add(11 * time.Hour),
		Status:        model.AppointmentStatusScheduled,
	}
	require.NoError(t, f.schedule.CreateTx(context.Background(), nil, foreign))

	actor := &model.Actor{ID: uuid.New(), Email: f.patient.Email, Role: model.RolePatient}

	got, err := f.svc.Get(context.Background(), actor, own.ID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	_, err = f.svc.Get(context.Background(), actor, foreign.ID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestListScopesDoctorToOwnSchedule(t *testing.T) {
	f := newFixture(t)
	actor := &model.Actor{ID: f.doctor.ID, Email: f.doctor.Email, Role: model.RoleDoctor}

	_, _, err := f.svc.List(context.Background(), actor, nil)
	require.NoError(t, err)

	require.NotNil(t, f.schedule.lastFilters)
	assert.Equal(t, model.ScopeUpcoming, f.schedule.lastFilters.Scope)
	assert.Equal(t, "asc", f.schedule.lastFilters.Order)
	require.NotNil(t, f.schedule.lastFilters.DoctorID)
	assert.Equal(t, f.doctor.ID, *f.schedule.lastFilters.DoctorID)
}

func TestListScopesPatientByEmail(t *testing.T) {
	f := newFixture(t)
	actor := &model.Actor{ID: uuid.New(), Email: strings.ToUpper(f.patient.Email), Role: model.RolePatient}

	_, _, err := f.svc.List(context.Background(), actor, nil)
	require.NoError(t, err)

	require.NotNil(t, f.schedule.lastFilters.PatientID)
	assert.Equal(t, f.patient.ID, *f.schedule.lastFilters.PatientID)
}

// A patient login with no patient record sees an empty list, not everyone
// else's bookings.
func TestListPatientWithoutRecordSeesNothing(t *testing.T) {
	f := newFixture(t)
	actor := &model.Actor{ID: uuid.New(), Email: "nobody@example.test", Role: model.RolePatient}

	rows, total, err := f.svc.List(context.Background(), actor, nil)

	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
	assert.Zero(t, f.schedule.listCalls)
}

func TestHistoryDefaultsToNewestFirst(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.History(context.Background(), f.staff(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.ScopeHistory, f.schedule.lastFilters.Scope)
	assert.Equal(t, "desc", f.schedule.lastFilters.Order)
}

func TestHistoryHonorsExplicitOrder(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.History(context.Background(), f.staff(), &model.AppointmentFilters{Order: "asc"})
	require.NoError(t, err)

	assert.Equal(t, "asc", f.schedule.lastFilters.Order)
}

func TestListParsesExplicitDateParam(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.List(context.Background(), f.staff(), &model.AppointmentFilters{Date: "2026-06-01"})
	require.NoError(t, err)

	require.NotNil(t, f.schedule.lastFilters.DayStart)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), *f.schedule.lastFilters.DayStart)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), *f.schedule.lastFilters.DayEnd)
}

func TestListIgnoresMalformedDateParam(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.List(context.Background(), f.staff(), &model.AppointmentFilters{Date: "garbage"})
	require.NoError(t, err)

	assert.Nil(t, f.schedule.lastFilters.DayStart)
}

func TestSearchGrammar(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		clock  bool
		verify func(t *testing.T, filters *model.AppointmentFilters)
	}{
		{
			name:  "status keyword",
			query: "all Scheduled visits",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Equal(t, model.AppointmentStatusScheduled, filters.Status)
				assert.Empty(t, filters.Text)
			},
		},
		{
			name:  "american spelling of cancelled",
			query: "canceled",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Equal(t, model.AppointmentStatusCancelled, filters.Status)
			},
		},
		{
			name:  "iso date",
			query: "2026-03-07",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				require.NotNil(t, filters.DayStart)
				assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), *filters.DayStart)
				assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), *filters.DayEnd)
			},
		},
		{
			name:  "day first date with slashes",
			query: "7/3/2026",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				require.NotNil(t, filters.DayStart)
				assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), *filters.DayStart)
			},
		},
		{
			name:  "impossible date falls back to text",
			query: "2026-02-30",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Nil(t, filters.DayStart)
				assert.Equal(t, "2026-02-30", filters.Text)
			},
		},
		{
			name:  "clock time in history",
			query: "14:30",
			clock: true,
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				require.NotNil(t, filters.TimeHour)
				assert.Equal(t, 14, *filters.TimeHour)
				assert.Equal(t, 30, *filters.TimeMinute)
			},
		},
		{
			name:  "afternoon clock time",
			query: "2:30pm",
			clock: true,
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				require.NotNil(t, filters.TimeHour)
				assert.Equal(t, 14, *filters.TimeHour)
			},
		},
		{
			name:  "midnight edge of am",
			query: "12:15am",
			clock: true,
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				require.NotNil(t, filters.TimeHour)
				assert.Equal(t, 0, *filters.TimeHour)
				assert.Equal(t, 15, *filters.TimeMinute)
			},
		},
		{
			name:  "clock time outside history is text",
			query: "14:30",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Nil(t, filters.TimeHour)
				assert.Equal(t, "14:30", filters.Text)
			},
		},
		{
			name:  "out of range clock is text",
			query: "99:99",
			clock: true,
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Nil(t, filters.TimeHour)
				assert.Equal(t, "99:99", filters.Text)
			},
		},
		{
			name:  "free text",
			query: "  lopez  ",
			verify: func(t *testing.T, filters *model.AppointmentFilters) {
				assert.Equal(t, "lopez", filters.Text)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filters := &model.AppointmentFilters{SearchTerm: tc.query}
			parseSearch(filters, time.UTC, tc.clock)
			tc.verify(t, filters)
		})
	}
}

func TestDayRejectsMalformedDate(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Day(context.Background(), "not-a-date")

	verrs := requireValidation(t, err)
	assert.Contains(t, verrs.Fields["date"], msgInvalidDate)
}

func TestDayUsesHalfOpenWindow(t *testing.T) {
	f := newFixture(t)

	_, day, err := f.svc.Day(context.Background(), "2026-06-01")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, day, f.schedule.lastDayStart)
	assert.Equal(t, day.AddDate(0, 0, 1), f.schedule.lastDayEnd)
}

func TestCalendarBuildsEventsFromStatus(t *testing.T) {
	f := newFixture(t)
	start := futureDay(2).Add(10 * time.Hour)
	name := "Ana Lopez"
	f.schedule.listRows = []*model.AppointmentWithNames{
		{
			Appointment: model.Appointment{
				Base:          model.Base{ID: uuid.New()},
				DoctorID:      f.doctor.ID,
				ScheduledTime: start,
				Status:        model.AppointmentStatusScheduled,
			},
			DoctorName:  "Gregory House",
			PatientName: &name,
		},
		{
			Appointment: model.Appointment{
				Base:          model.Base{ID: uuid.New()},
				DoctorID:      f.doctor.ID,
				ScheduledTime: start.Add(time.Hour),
				Status:        model.AppointmentStatusCancelled,
			},
			DoctorName: "Gregory House",
		},
	}

	events, err := f.svc.Calendar(context.Background(), f.staff(), "", "")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Ana Lopez", events[0].Title)
	assert.Equal(t, model.CalendarColor(model.AppointmentStatusScheduled), events[0].Color)
	assert.True(t, events[0].End.Equal(start.Add(30*time.Minute)))

	assert.Equal(t, "Appointment", events[1].Title)
	assert.Equal(t, model.CalendarColor(model.AppointmentStatusCancelled), events[1].Color)
}

func TestCalendarScopesPatientActor(t *testing.T) {
	f := newFixture(t)
	actor := &model.Actor{ID: uuid.New(), Email: f.patient.Email, Role: model.RolePatient}

	_, err := f.svc.Calendar(context.Background(), actor, "", "")
	require.NoError(t, err)

	require.NotNil(t, f.schedule.lastCalendarPatient)
	assert.Equal(t, f.patient.ID, *f.schedule.lastCalendarPatient)
}

func TestCalendarRejectsMalformedBounds(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Calendar(context.Background(), f.staff(), "soon", "")

	verrs := requireValidation(t, err)
	assert.NotEmpty(t, verrs.Fields["from"])
}

func TestUpcomingClampsLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upcoming(context.Background(), f.staff(), 500)
	require.NoError(t, err)
	assert.Equal(t, calendarUpcomingLimit, f.schedule.lastUpcomingLimit)

	_, err = f.svc.Upcoming(context.Background(), f.staff(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5, f.schedule.lastUpcomingLimit)
}
