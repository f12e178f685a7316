package contact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/internal/repository"
	"github.com/clinovia/clinic-api/internal/service/audit"
	apperrors "github.com/clinovia/clinic-api/pkg/errors"
	"github.com/clinovia/clinic-api/pkg/logger"
)

type fakeContactStore struct {
	rows map[uuid.UUID]*model.ContactQuery

	lastStatus model.ContactStatus
	lastPage   model.Pagination
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{rows: make(map[uuid.UUID]*model.ContactQuery)}
}

func (f *fakeContactStore) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error { return fn(nil) }

func (f *fakeContactStore) CreateTx(_ context.Context, _ *sqlx.Tx, query *model.ContactQuery) error {
	query.ID = uuid.New()
	query.Status = model.ContactStatusNew
	query.CreatedAt = time.Now()
	cp := *query
	f.rows[query.ID] = &cp
	return nil
}

func (f *fakeContactStore) Get(_ context.Context, id uuid.UUID) (*model.ContactQuery, error) {
	q, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get contact query: %w", repository.ErrNotFound)
	}
	cp := *q
	return &cp, nil
}

func (f *fakeContactStore) List(_ context.Context, status model.ContactStatus, p model.Pagination) ([]*model.ContactQuery, int, error) {
	f.lastStatus = status
	f.lastPage = p

	var out []*model.ContactQuery
	for _, q := range f.rows {
		if status != "" && q.Status != status {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeContactStore) Reply(_ context.Context, id uuid.UUID, replyMessage string) error {
	q, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("failed to reply to contact query: %w", repository.ErrNotFound)
	}
	q.ReplyMessage = &replyMessage
	q.Status = model.ContactStatusReplied
	return nil
}

type fakeOutboxStore struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxStore) Create(_ context.Context, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxStore) CreateTx(ctx context.Context, _ *sqlx.Tx, event *model.OutboxEvent) error {
	return f.Create(ctx, event)
}

func (f *fakeOutboxStore) GetPendingEvents(_ context.Context, _ int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxStore) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutboxStore) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxStore) eventTypes() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeSender struct {
	replies   []string
	repliedTo []string
	fail      bool
}

func (f *fakeSender) SendPasswordResetCode(_ context.Context, _, _ string) error { return nil }

func (f *fakeSender) SendWelcome(_ context.Context, _, _ string) error { return nil }

func (f *fakeSender) SendContactReply(_ context.Context, to, message string) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.repliedTo = append(f.repliedTo, to)
	f.replies = append(f.replies, message)
	return nil
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
	repo     *fakeContactStore
	outbox   *fakeOutboxStore
	sender   *fakeSender
	auditLog *fakeAuditStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeContactStore()
	outbox := &fakeOutboxStore{}
	sender := &fakeSender{}
	auditLog := &fakeAuditStore{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	return &fixture{
		svc:      NewService(repo, outbox, sender, audit.NewService(auditLog, log), log),
		repo:     repo,
		outbox:   outbox,
		sender:   sender,
		auditLog: auditLog,
	}
}

func staff() *model.Actor {
	return &model.Actor{ID: uuid.New(), Email: "front.desk@clinic.test", Role: model.RoleReceptionist}
}

func (f *fixture) seedQuery(t *testing.T) *model.ContactQuery {
	t.Helper()
	query, err := f.svc.Create(context.Background(), &model.CreateContactQueryRequest{
		FullName: "Sam Rivera",
		Email:    "sam.rivera@example.test",
		Message:  "Do you take walk-ins on Saturdays?",
	})
	require.NoError(t, err)
	return query
}

func TestCreateStoresQueryAndEmitsEvent(t *testing.T) {
	f := newFixture(t)

	query := f.seedQuery(t)

	assert.Equal(t, model.ContactStatusNew, query.Status)
	assert.Equal(t, "Sam Rivera", query.FullName)
	assert.Equal(t, []string{model.EventContactQueryReceived}, f.outbox.eventTypes())
}

func TestCreateRejectsBlankMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.CreateContactQueryRequest{
		FullName: "Sam Rivera",
		Email:    "sam.rivera@example.test",
		Message:  "   ",
	})

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields["message"], msgEmptyMessage)
	assert.Empty(t, f.outbox.events)
}

func TestReplySendsEmailAndMarksReplied(t *testing.T) {
	f := newFixture(t)
	query := f.seedQuery(t)

	replied, err := f.svc.Reply(context.Background(), staff(), query.ID, &model.ReplyContactQueryRequest{
		ReplyMessage: "Yes, Saturdays 9 to 13.",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ContactStatusReplied, replied.Status)
	require.NotNil(t, replied.ReplyMessage)
	assert.Equal(t, "Yes, Saturdays 9 to 13.", *replied.ReplyMessage)

	assert.Equal(t, []string{"sam.rivera@example.test"}, f.sender.repliedTo)
	require.Len(t, f.auditLog.entries, 1)
	assert.Equal(t, model.AuditActionReply, f.auditLog.entries[0].Action)
}

func TestReplyRejectsSecondReply(t *testing.T) {
	f := newFixture(t)
	query := f.seedQuery(t)
	_, err := f.svc.Reply(context.Background(), staff(), query.ID, &model.ReplyContactQueryRequest{ReplyMessage: "First answer."})
	require.NoError(t, err)

	_, err = f.svc.Reply(context.Background(), staff(), query.ID, &model.ReplyContactQueryRequest{ReplyMessage: "Second answer."})

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields[apperrors.NonFieldKey], msgAlreadyReplied)
	assert.Len(t, f.sender.replies, 1)
}

func TestReplyRejectsBlankReply(t *testing.T) {
	f := newFixture(t)
	query := f.seedQuery(t)

	_, err := f.svc.Reply(context.Background(), staff(), query.ID, &model.ReplyContactQueryRequest{ReplyMessage: "  "})

	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields["reply_message"], msgEmptyReply)
	assert.Equal(t, model.ContactStatusNew, f.repo.rows[query.ID].Status)
}

func TestReplySucceedsWhenEmailFails(t *testing.T) {
	f := newFixture(t)
	query := f.seedQuery(t)
	f.sender.fail = true

	replied, err := f.svc.Reply(context.Background(), staff(), query.ID, &model.ReplyContactQueryRequest{
		ReplyMessage: "We are open.",
	})

	require.NoError(t, err)
	assert.Equal(t, model.ContactStatusReplied, replied.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	f.seedQuery(t)

	_, total, err := f.svc.List(context.Background(), "new", model.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, model.ContactStatusNew, f.repo.lastStatus)
	assert.Equal(t, model.DefaultPageSize, f.repo.lastPage.PageSize)

	_, _, err = f.svc.List(context.Background(), "archived", model.Pagination{})
	var verrs *apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields["status"], msgBadStatus)
}
