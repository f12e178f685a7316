package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
)

func newAppointmentRepo(t *testing.T) (repository.AppointmentRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newMockDB(t)
	return NewAppointmentRepository(NewBaseRepository(db), 30, "UTC"), mock
}

var appointmentListColumns = []string{
	"id", "doctor_id", "patient_id", "scheduled_time", "duration_minutes",
	"status", "reason", "created_at", "updated_at", "doctor_name", "patient_name",
}

func TestBusyIntervals(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	doctorID := uuid.New()
	from := time.Date(2030, 6, 4, 9, 0, 0, 0, time.UTC)
	to := from.Add(8 * time.Hour)
	busyStart := from.Add(time.Hour)
	busyEnd := busyStart.Add(30 * time.Minute)

	mock.ExpectQuery("SELECT a.scheduled_time AS start_time").
		WithArgs(doctorID, from, to, 30).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}).
			AddRow(busyStart, busyEnd))

	intervals, err := repo.BusyIntervals(context.Background(), doctorID, from, to, nil)
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.True(t, intervals[0].Start.Equal(busyStart))
	assert.True(t, intervals[0].End.Equal(busyEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusyIntervalsExcludesAppointment(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	doctorID := uuid.New()
	excludeID := uuid.New()
	from := time.Date(2030, 6, 4, 9, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery("AND a.id <>").
		WithArgs(doctorID, from, to, 30, excludeID).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}))

	intervals, err := repo.BusyIntervals(context.Background(), doctorID, from, to, &excludeID)
	require.NoError(t, err)
	assert.Empty(t, intervals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxSourceReadsThroughTransaction(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	doctorID := uuid.New()
	from := time.Date(2030, 6, 4, 9, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT a.scheduled_time AS start_time").
		WithArgs(doctorID, from, to, 30).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}))
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		intervals, err := repo.TxSource(tx).BusyIntervals(context.Background(), doctorID, from, to, nil)
		require.NoError(t, err)
		assert.Empty(t, intervals)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTxAssignsIdentifiers(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	appt := &model.Appointment{
		DoctorID:      uuid.New(),
		ScheduledTime: time.Date(2030, 6, 4, 10, 0, 0, 0, time.UTC),
		Status:        model.AppointmentStatusScheduled,
	}

	err := repo.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		return repo.CreateTx(context.Background(), tx, appt)
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.False(t, appt.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTranslatesMissingRow(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM appointments WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateStatusTxReportsMissingRow(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(model.AppointmentStatusCancelled, id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		return repo.UpdateStatusTx(context.Background(), tx, id, model.AppointmentStatusCancelled)
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListScopesTimeWindow(t *testing.T) {
	tests := []struct {
		name     string
		scope    model.AppointmentScope
		fragment string
	}{
		{"upcoming", model.ScopeUpcoming, "a.scheduled_time >= NOW()"},
		{"history", model.ScopeHistory, "a.scheduled_time < NOW()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newAppointmentRepo(t)

			filters := &model.AppointmentFilters{Scope: tt.scope}
			filters.Normalize()

			mock.ExpectQuery(regexp.QuoteMeta(tt.fragment)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
			mock.ExpectQuery(regexp.QuoteMeta(tt.fragment)).
				WithArgs(model.DefaultPageSize, 0).
				WillReturnRows(sqlmock.NewRows(appointmentListColumns))

			_, total, err := repo.List(context.Background(), filters)
			require.NoError(t, err)
			assert.Equal(t, 0, total)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListBindsTextSearchOnce(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	filters := &model.AppointmentFilters{
		Scope: model.ScopeHistory,
		Text:  "garcia",
		Order: "desc",
	}
	filters.Normalize()

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("%garcia%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("ORDER BY a.scheduled_time DESC").
		WithArgs("%garcia%", model.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(appointmentListColumns).
			AddRow(uuid.New(), uuid.New(), nil, now, nil, "completed", nil, now, now, "Asha Rau", nil))

	items, total, err := repo.List(context.Background(), filters)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Asha Rau", items[0].DoctorName)
	assert.Nil(t, items[0].PatientName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFiltersTimeOfDayInClinicZone(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	hour, minute := 14, 30
	filters := &model.AppointmentFilters{
		Scope:      model.ScopeHistory,
		TimeHour:   &hour,
		TimeMinute: &minute,
	}
	filters.Normalize()

	mock.ExpectQuery("EXTRACT\\(HOUR FROM a.scheduled_time AT TIME ZONE").
		WithArgs("UTC", 14, "UTC", 30).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("EXTRACT\\(MINUTE FROM a.scheduled_time AT TIME ZONE").
		WithArgs("UTC", 14, "UTC", 30, model.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(appointmentListColumns))

	_, _, err := repo.List(context.Background(), filters)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailableYears(t *testing.T) {
	repo, mock := newAppointmentRepo(t)

	mock.ExpectQuery("SELECT DISTINCT EXTRACT").
		WithArgs("UTC").
		WillReturnRows(sqlmock.NewRows([]string{"year"}).AddRow(2031).AddRow(2030))

	years, err := repo.AvailableYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2031, 2030}, years)
	assert.NoError(t, mock.ExpectationsWereMet())
}
